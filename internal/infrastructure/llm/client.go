// Package llm holds the provider adapters behind ports.Completer.
package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"CivicScanner/internal/config"
	"CivicScanner/internal/ports"
)

const defaultTimeout = 60 * time.Second

// NewCompleter picks the provider adapter named in cfg.
func NewCompleter(cfg config.LLMConfig, httpClient *http.Client) (ports.Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderGemini, "":
		return NewGeminiClient(cfg, httpClient), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, httpClient), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("llm provider %q is not supported", cfg.Provider)
	}
}

func httpClientOrDefault(client *http.Client, cfg config.LLMConfig) *http.Client {
	if client != nil {
		return client
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You summarize local government documents for residents."
	}
	return prompt
}
