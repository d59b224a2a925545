package agent

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
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one backend call: the full message list plus sampling options.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Backend is the wire-protocol side of an agent.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Kind names one backend implementation.
type Kind string

const (
	KindAnthropic Kind = "anthropic"
	KindOpenAI    Kind = "openai"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindAnthropic, KindOpenAI}

// Valid reports whether k is a supported backend.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

type Credentials struct {
	APIKey  string
	BaseURL string
}

const defaultTimeout = 5 * time.Minute

// NewBackend returns the implementation for kind. A nil client gets a
// default one with a generous timeout.
func NewBackend(kind Kind, cred Credentials, client *http.Client) (Backend, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	switch kind {
	case KindAnthropic:
		return newAnthropic(cred, client), nil
	case KindOpenAI:
		return newOpenAI(cred, client), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

func baseURL(raw, fallback string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u == "" {
		return fallback
	}
	return u
}

// postJSON sends body to endpoint and decodes a 2xx reply into out. Non-2xx
// replies are returned as errors carrying the server's message.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %s: %s", resp.Status, errorMessage(raw))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error":{"message":...}} when present.
func errorMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
