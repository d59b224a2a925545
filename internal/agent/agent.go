package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// History selects whether an agent carries conversation context between calls.
type History string

const (
	Stateful  History = "stateful"
	Stateless History = "stateless"
)

// Spec is the immutable identity of one configured agent.
type Spec struct {
	DisplayName     string  // agent_name
	ModelName       string  // model_name
	ModelID         string  // model_code, sent to the backend
	Temperature     float64 // sampling temperature in [0,2]
	MaxTokens       int
	History         History
	StripCodeFences bool
}

// Agent is the single capability the pipeline depends on.
type Agent interface {
	Respond(ctx context.Context, prompt string) (string, error)
	Spec() Spec
}

// DefaultMaxTokens is used when a Spec leaves MaxTokens unset.
const DefaultMaxTokens = 1000

// ErrEmptyPrompt is returned when Respond is called without a prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// ErrNoContent is returned when a backend succeeds without producing text.
// Its text appears verbatim in stage logs.
var ErrNoContent = errors.New("Could not complete the request.")

// BackendError tags a failed Respond call with the agent that made it.
type BackendError struct {
	Agent string
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Agent, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// New builds the agent variant selected by spec.History. System is sent as
// the system prompt on every backend call.
func New(spec Spec, backend Backend, system string) (Agent, error) {
	if backend == nil {
		return nil, fmt.Errorf("agent %s: nil backend", spec.DisplayName)
	}
	if spec.MaxTokens <= 0 {
		spec.MaxTokens = DefaultMaxTokens
	}
	base := core{spec: spec, backend: backend, system: system}
	switch spec.History {
	case Stateful, "":
		return &StatefulAgent{core: base}, nil
	case Stateless:
		return &StatelessAgent{core: base}, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown history mode %q", spec.DisplayName, spec.History)
	}
}

type core struct {
	spec    Spec
	backend Backend
	system  string
}

func (c *core) Spec() Spec { return c.spec }

func (c *core) complete(ctx context.Context, messages []Message) (string, error) {
	text, err := c.backend.Complete(ctx, Request{
		Model:       c.spec.ModelID,
		System:      c.system,
		Messages:    messages,
		Temperature: c.spec.Temperature,
		MaxTokens:   c.spec.MaxTokens,
	})
	if err != nil {
		return "", &BackendError{Agent: c.spec.DisplayName, Err: err}
	}
	if c.spec.StripCodeFences {
		text = stripCodeFences(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &BackendError{Agent: c.spec.DisplayName, Err: ErrNoContent}
	}
	return text, nil
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```latex", "")
	return strings.ReplaceAll(s, "```", "")
}

// StatefulAgent keeps its own conversation and sends it on every call.
type StatefulAgent struct {
	core
	mu      sync.Mutex
	history []Message
}

func (a *StatefulAgent) Respond(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", &BackendError{Agent: a.spec.DisplayName, Err: ErrEmptyPrompt}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.history = append(a.history, Message{Role: RoleUser, Content: prompt})
	text, err := a.complete(ctx, a.history)
	if err != nil {
		// Drop the unanswered turn so roles keep alternating.
		a.history = a.history[:len(a.history)-1]
		return "", err
	}
	a.history = append(a.history, Message{Role: RoleAssistant, Content: text})
	return text, nil
}

// History returns a copy of the conversation so far.
func (a *StatefulAgent) History() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Message, len(a.history))
	copy(out, a.history)
	return out
}

// StatelessAgent sends every prompt in a fresh context.
type StatelessAgent struct {
	core
}

func (a *StatelessAgent) Respond(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", &BackendError{Agent: a.spec.DisplayName, Err: ErrEmptyPrompt}
	}
	return a.complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
}
