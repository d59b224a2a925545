package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const openAIURL = "https://api.openai.com/v1"

// openAIBackend speaks the chat completions protocol, which also covers
// local OpenAI-compatible servers through a custom base URL.
type openAIBackend struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func newOpenAI(cred Credentials, client *http.Client) *openAIBackend {
	u := baseURL(cred.BaseURL, openAIURL)
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return &openAIBackend{
		apiKey:  cred.APIKey,
		baseURL: u,
		http:    client,
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

func (b *openAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.Messages...)

	body := openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	var headers map[string]string
	if b.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + b.apiKey}
	}

	var decoded openAIResponse
	if err := postJSON(ctx, b.http, b.baseURL+"/chat/completions", headers, body, &decoded); err != nil {
		return "", err
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("response missing choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
