package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"CivicScanner/internal/config"
	"CivicScanner/internal/ports"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient implements ports.Completer backed by OpenAI-compatible APIs.
type OpenAIClient struct {
	endpoint   string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.Completer = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.LLMConfig, httpClient *http.Client) *OpenAIClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	return &OpenAIClient{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: httpClientOrDefault(httpClient, cfg),
	}
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts a system and user message pair and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(system)},
			{"role": "user", "content": prompt},
		},
	}
	if c.maxTokens > 0 {
		payload["max_tokens"] = c.maxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal openai payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", statusError("openai", resp)
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func statusError(provider string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s error %s: %s", provider, resp.Status, strings.TrimSpace(string(payload)))
}
