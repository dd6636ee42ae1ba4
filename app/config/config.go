package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Log        Log        `yaml:"log"`
	Telegram   Telegram   `yaml:"telegram"`
	HTTP       HTTP       `yaml:"http"`
	LLM        LLM        `yaml:"llm"`
	ElevenLabs ElevenLabs `yaml:"elevenlabs"`
	Qdrant     Qdrant     `yaml:"qdrant"`
	SpeechKit  SpeechKit  `yaml:"speechkit"`
	MCP        MCP        `yaml:"mcp"`
	Storage    Storage    `yaml:"storage"`
	Workflow   Workflow   `yaml:"workflow"`
}

type LLM struct {
	// Chat model provider
	Provider string `yaml:"provider" example:"openai" validate:"oneof=openai anthropic"`
	// Chat model base url, provider default when empty
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1"`
	// Chat model token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Chat model
	Model string `yaml:"model" example:"gpt-4o-mini" validate:"required"`
	// Embedding model, must match the one used to build the qdrant collection
	EmbeddingModel string `yaml:"embedding_model" example:"text-embedding-3-small" validate:"required"`
	// OpenAI token for embeddings, falls back to Token
	EmbeddingToken string `yaml:"embedding_token"`
	// OpenAI base url for embeddings, falls back to BaseURL for the openai provider
	EmbeddingBaseURL string `yaml:"embedding_base_url"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"60s"`
}

type ElevenLabs struct {
	// API base url
	BaseURL string `yaml:"base_url" example:"https://api.elevenlabs.io"`
	// API key
	APIKey string `yaml:"api_key" example:"sk_0123456789abcdef0123456789abcdef" validate:"required"`
	// Voice used for audio replies
	VoiceID string `yaml:"voice_id" example:"21m00Tcm4TlvDq8ikWAM" validate:"required"`
	// TTS model
	ModelID string `yaml:"model_id" example:"eleven_multilingual_v2" validate:"required"`
	// Output format query parameter
	OutputFormat string `yaml:"output_format" example:"mp3_44100_128"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"60s"`
}

type Qdrant struct {
	// Qdrant REST url
	URL string `yaml:"url" example:"http://localhost:6333" validate:"required,url"`
	// Qdrant api key
	APIKey string `yaml:"api_key"`
	// Collection with the indexed knowledge base
	Collection string `yaml:"collection" example:"aws_docs" validate:"required"`
	// Payload key holding the passage text
	ContentKey string `yaml:"content_key" example:"page_content"`
	// Number of passages returned per query
	TopK int `yaml:"top_k" example:"4" validate:"min=1,max=50"`
}

type SpeechKit struct {
	// Path to the Yandex Cloud service account key, voice notes are not transcribed when empty
	ServiceAccountKey string `yaml:"service_account_key" example:"service-account-key.json"`
	// Recognition language
	Language string `yaml:"language" example:"en-US"`
}

type MCP struct {
	Servers []MCPServer `yaml:"servers" validate:"dive"`
}

type MCPServer struct {
	Name    string   `yaml:"name" example:"memory" validate:"required"`
	Command string   `yaml:"command" example:"docker" validate:"required"`
	Args    []string `yaml:"args"`
}

type Storage struct {
	// Conversation storage backend
	Driver string `yaml:"driver" example:"file" validate:"oneof=file redis"`
	// Directory for the file driver
	Dir   string `yaml:"dir" example:"data/conversations"`
	Redis Redis  `yaml:"redis"`
}

type Redis struct {
	Addr      string `yaml:"addr" example:"localhost:6379"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix" example:"awsbot:"`
}

type Workflow struct {
	// Message count above which the conversation is summarized
	SummaryThreshold int `yaml:"summary_threshold" example:"20" validate:"min=2"`
	// Probability of answering with a voice note when the router picked text
	AudioProbability *float64 `yaml:"audio_probability" example:"0.5" validate:"omitempty,min=0,max=1"`
	// Max model calls in one tool-use loop
	MaxToolIterations int `yaml:"max_tool_iterations" example:"5" validate:"min=1"`
	// Upper bound for a whole turn
	TurnTimeout time.Duration `yaml:"turn_timeout" example:"2m"`
	// Sent to the user when a turn fails
	FallbackMessage string `yaml:"fallback_message"`
	// Conversations processed in parallel
	Workers int `yaml:"workers" example:"4" validate:"min=1"`
}

type Telegram struct {
	// Bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Don't start the long-polling receiver
	Disabled bool `yaml:"disabled" example:"false"`
}

type HTTP struct {
	// Listen address, API is disabled when empty
	Addr string `yaml:"addr" example:":8080"`
	// Bearer token required on /api routes, the API is open when empty so keep addr internal then
	Token string `yaml:"token" example:"change-me"`
}

type Log struct {
	// Minimal console level: debug, info, warn or error
	Level string `yaml:"level" example:"info" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	path := DefaultPath
	if value := os.Getenv("CONFIG_PATH"); value != "" {
		path = value
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if !result.Telegram.Disabled && result.Telegram.Token == "" {
		return nil, oops.Errorf("telegram.token is required unless telegram.disabled is set")
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.EmbeddingToken == "" {
		c.LLM.EmbeddingToken = c.LLM.Token
	}
	if c.LLM.EmbeddingBaseURL == "" && c.LLM.Provider == "openai" {
		c.LLM.EmbeddingBaseURL = c.LLM.BaseURL
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}

	if c.ElevenLabs.BaseURL == "" {
		c.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	}
	if c.ElevenLabs.OutputFormat == "" {
		c.ElevenLabs.OutputFormat = "mp3_44100_128"
	}
	if c.ElevenLabs.Timeout == 0 {
		c.ElevenLabs.Timeout = 60 * time.Second
	}

	if c.Qdrant.ContentKey == "" {
		c.Qdrant.ContentKey = "page_content"
	}
	if c.Qdrant.TopK == 0 {
		c.Qdrant.TopK = 4
	}

	if c.SpeechKit.Language == "" {
		c.SpeechKit.Language = "en-US"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data/conversations"
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = "localhost:6379"
	}
	if c.Storage.Redis.KeyPrefix == "" {
		c.Storage.Redis.KeyPrefix = "awsbot:"
	}

	if c.Workflow.SummaryThreshold == 0 {
		c.Workflow.SummaryThreshold = 20
	}
	if c.Workflow.AudioProbability == nil {
		p := 0.5
		c.Workflow.AudioProbability = &p
	}
	if c.Workflow.MaxToolIterations == 0 {
		c.Workflow.MaxToolIterations = 5
	}
	if c.Workflow.TurnTimeout == 0 {
		c.Workflow.TurnTimeout = 2 * time.Minute
	}
	if c.Workflow.FallbackMessage == "" {
		c.Workflow.FallbackMessage = "Sorry, something went wrong while answering. Please try again."
	}
	if c.Workflow.Workers == 0 {
		c.Workflow.Workers = 4
	}
}
