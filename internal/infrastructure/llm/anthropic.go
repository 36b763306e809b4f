package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"CivicScanner/internal/config"
	"CivicScanner/internal/ports"
)

const defaultAnthropicMaxTokens = 2048

// AnthropicClient implements ports.Completer with the official Messages SDK.
type AnthropicClient struct {
	client    anthropic.Client
	maxTokens int64
	apiKey    string
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration. Endpoint overrides
// the SDK base URL.
func NewAnthropicClient(cfg config.LLMConfig, httpClient *http.Client) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClientOrDefault(httpClient, cfg)),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
		apiKey:    cfg.APIKey,
	}
}

// Complete sends one user turn and concatenates the text blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("anthropic client is nil")
	}
	if c.apiKey == "" || model == "" {
		return "", fmt.Errorf("anthropic client misconfigured")
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: safePrompt(system)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text")
	}
	return b.String(), nil
}
