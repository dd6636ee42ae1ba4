package speechkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"awsbot/app/config"

	"github.com/samber/do"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
)

var ErrDisabled = errors.New("speechkit is not configured")

type YandexSpeechKit struct {
	cfg config.SpeechKit
	sdk *ycsdk.SDK
}

// NewClient returns a disabled client when no service account key is configured.
func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.SpeechKit.ServiceAccountKey == "" {
		return &YandexSpeechKit{cfg: cfg.SpeechKit}, nil
	}

	keyBytes, err := os.ReadFile(cfg.SpeechKit.ServiceAccountKey)
	if err != nil {
		return nil, fmt.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, fmt.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yandex SDK: %w", err)
	}

	return &YandexSpeechKit{
		cfg: cfg.SpeechKit,
		sdk: sdk,
	}, nil
}

func (y *YandexSpeechKit) Enabled() bool {
	return y.sdk != nil
}

func (y *YandexSpeechKit) Start(ctx context.Context) (*Handle, error) {
	if y.sdk == nil {
		return nil, ErrDisabled
	}

	ctx, cancel := context.WithCancel(ctx)

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Handle{
		client:   client,
		cancel:   cancel,
		language: y.cfg.Language,
	}, nil
}
