package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"awsbot/app/config"

	"github.com/samber/do"
)

type ConvertRequest struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

type convertBody struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Client is a minimal text-to-speech client for the ElevenLabs REST API.
type Client struct {
	cfg    config.ElevenLabs
	client *http.Client
}

func New(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewClient(cfg.ElevenLabs), nil
}

func NewClient(cfg config.ElevenLabs) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Convert starts synthesis and returns the audio stream. The caller closes it.
func (c *Client) Convert(ctx context.Context, req ConvertRequest) (io.ReadCloser, error) {
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.cfg.VoiceID
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = c.cfg.ModelID
	}

	format := req.OutputFormat
	if format == "" {
		format = c.cfg.OutputFormat
	}

	payload, err := json.Marshal(convertBody{
		Text:    req.Text,
		ModelID: modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(voiceID))
	if format != "" {
		endpoint += "?output_format=" + url.QueryEscape(format)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	return resp.Body, nil
}
