package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"awsbot/app/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice-1/stream", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))

		var body convertBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello there", body.Text)
		assert.Equal(t, "eleven_multilingual_v2", body.ModelID)

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("chunk-1"))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("chunk-2"))
	}))
	defer server.Close()

	client := NewClient(config.ElevenLabs{
		BaseURL:      server.URL,
		APIKey:       "secret",
		VoiceID:      "voice-1",
		ModelID:      "eleven_multilingual_v2",
		OutputFormat: "mp3_44100_128",
	})

	stream, err := client.Convert(context.Background(), ConvertRequest{Text: "hello there"})
	require.NoError(t, err)
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1chunk-2", string(audio))
}

func TestConvert_RequestOverridesConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/other-voice/stream", r.URL.Path)
		assert.Equal(t, "pcm_16000", r.URL.Query().Get("output_format"))

		var body convertBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eleven_turbo_v2", body.ModelID)

		_, _ = w.Write([]byte("pcm"))
	}))
	defer server.Close()

	client := NewClient(config.ElevenLabs{BaseURL: server.URL + "/", VoiceID: "voice-1", ModelID: "m"})

	stream, err := client.Convert(context.Background(), ConvertRequest{
		Text:         "hi",
		VoiceID:      "other-voice",
		ModelID:      "eleven_turbo_v2",
		OutputFormat: "pcm_16000",
	})
	require.NoError(t, err)
	require.NoError(t, stream.Close())
}

func TestConvert_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	client := NewClient(config.ElevenLabs{BaseURL: server.URL, VoiceID: "v", ModelID: "m"})

	_, err := client.Convert(context.Background(), ConvertRequest{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
	assert.Contains(t, err.Error(), "invalid api key")
}
