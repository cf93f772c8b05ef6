package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultEndpoint = "/chat/completions"
	defaultModel    = "gpt-4o-mini"
	defaultTimeout  = 60 * time.Second
)

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	HTTPClient  *http.Client
}

// OpenAI talks to a chat-completions endpoint.
type OpenAI struct {
	apiKey      string
	model       string
	temperature float64
	endpointURL string
	httpClient  *http.Client
}

var _ Source = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("new openai source: api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &OpenAI{
		apiKey:      apiKey,
		model:       model,
		temperature: cfg.Temperature,
		endpointURL: strings.TrimRight(baseURL, "/") + defaultEndpoint,
		httpClient:  httpClient,
	}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete returns the first choice as a Message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (any, error) {
	encoded, err := json.Marshal(chatCompletionRequest{
		Model:       o.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: o.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("provider request encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpointURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("provider request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request execute: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("provider response read: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("provider response status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("provider response decode: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("provider response decode: no choices")
	}

	msg := parsed.Choices[0].Message
	return Message{Role: msg.Role, Content: msg.Content}, nil
}
