package openai_base

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"grokchat/logger"
	"grokchat/models"

	"go.uber.org/zap"
)

var (
	ErrMissingUsage = errors.New("provider response missing usage")
	ErrNoChoices    = errors.New("provider response has no choices")
)

// OpenAICompatibleClient talks to any /chat/completions endpoint that follows
// the OpenAI wire format.
type OpenAICompatibleClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func (client *OpenAICompatibleClient) Complete(ctx context.Context, messages []models.Message, params models.GenerationParams) (models.Completion, error) {
	payload := ChatCompletionRequest{
		Model:       client.Model,
		Messages:    messages,
		Stream:      false,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := strings.TrimRight(client.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", client.APIKey))

	logger.Log.Debug("sending completion request",
		zap.String("model", client.Model),
		zap.Int("messages", len(messages)))

	httpClient := client.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Completion{}, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Log.Warn("provider returned non-OK status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", bodyBytes))
		return models.Completion{}, fmt.Errorf("received non-OK response status %d: %s", resp.StatusCode, errorMessage(bodyBytes))
	}

	var apiResponse ChatCompletion
	if err := json.Unmarshal(bodyBytes, &apiResponse); err != nil {
		return models.Completion{}, fmt.Errorf("error unmarshalling response body: %w", err)
	}
	return toCompletion(apiResponse, client.Model)
}

func toCompletion(apiResponse ChatCompletion, model string) (models.Completion, error) {
	if len(apiResponse.Choices) == 0 {
		return models.Completion{}, ErrNoChoices
	}
	usage := apiResponse.Usage
	if usage == nil || usage.PromptTokens == nil || usage.CompletionTokens == nil {
		return models.Completion{}, ErrMissingUsage
	}

	total := *usage.PromptTokens + *usage.CompletionTokens
	if usage.TotalTokens != nil {
		total = *usage.TotalTokens
	}

	return models.Completion{
		Text:  apiResponse.Choices[0].Message.Content,
		Model: model,
		Usage: models.TokenUsage{
			PromptTokens:     *usage.PromptTokens,
			CompletionTokens: *usage.CompletionTokens,
			TotalTokens:      total,
		},
	}, nil
}

func errorMessage(body []byte) string {
	var errResponse ErrorResponse
	if err := json.Unmarshal(body, &errResponse); err == nil && errResponse.Error.Message != "" {
		return errResponse.Error.Message
	}
	return strings.TrimSpace(string(body))
}
