package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"CivicScanner/internal/config"
	"CivicScanner/internal/ports"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient implements ports.Completer against the Generative Language REST API.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.Completer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration. Endpoint overrides the
// API base URL.
func NewGeminiClient(cfg config.LLMConfig, httpClient *http.Client) *GeminiClient {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if base == "" {
		base = defaultGeminiBaseURL
	}
	return &GeminiClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		maxTokens:  cfg.MaxTokens,
		httpClient: httpClientOrDefault(httpClient, cfg),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Complete calls models/{model}:generateContent and joins the first candidate's parts.
func (c *GeminiClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("gemini client is nil")
	}
	if c.apiKey == "" || model == "" {
		return "", fmt.Errorf("gemini client misconfigured")
	}

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: safePrompt(system)}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if c.maxTokens > 0 {
		reqBody.GenerationConfig = map[string]any{"maxOutputTokens": c.maxTokens}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", statusError("gemini", resp)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
