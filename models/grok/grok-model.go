package grok_model

// Grok uses the OpenAI-compatible API format, so the transport lives in the
// base package and this package only carries the x.ai defaults.

import (
	"fmt"
	"net/http"
	"os"
	"time"

	openai_base "grokchat/models/open-ai-base"
)

const (
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-4"
)

// NewGrokClient builds a client from GROK_API_KEY (or XAI_API_KEY),
// GROK_BASE_URL and GROK_MODEL.
func NewGrokClient(timeout time.Duration) (*openai_base.OpenAICompatibleClient, error) {
	apiKey := os.Getenv("GROK_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("XAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("could not fetch api key: set GROK_API_KEY or XAI_API_KEY")
	}

	return &openai_base.OpenAICompatibleClient{
		BaseURL:    envOr("GROK_BASE_URL", DefaultBaseURL),
		APIKey:     apiKey,
		Model:      envOr("GROK_MODEL", DefaultModel),
		HTTPClient: &http.Client{Timeout: timeout},
	}, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
