package agent

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicURL     = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

type anthropicBackend struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func newAnthropic(cred Credentials, client *http.Client) *anthropicBackend {
	return &anthropicBackend{
		apiKey:  cred.APIKey,
		baseURL: baseURL(cred.BaseURL, anthropicURL),
		http:    client,
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *anthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Messages:    req.Messages,
	}
	headers := map[string]string{
		"x-api-key":         b.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var decoded anthropicResponse
	if err := postJSON(ctx, b.http, b.baseURL+"/v1/messages", headers, body, &decoded); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
