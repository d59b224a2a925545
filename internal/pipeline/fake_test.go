package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mtzanidakis/concilium/internal/agent"
)

type callEntry struct {
	agent  string
	prompt string
}

type callLog struct {
	mu      sync.Mutex
	entries []callEntry
}

func (l *callLog) add(name, prompt string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, callEntry{agent: name, prompt: prompt})
}

func (l *callLog) snapshot() []callEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]callEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// fakeAgent replies "<name>-reply-<n>" for its n-th call and flags any
// overlapping calls on the same agent.
type fakeAgent struct {
	t        *testing.T
	spec     agent.Spec
	calls    *callLog
	fail     func(n int) error
	delay    time.Duration
	mu       sync.Mutex
	n        int
	inFlight atomic.Int32
}

func (f *fakeAgent) Spec() agent.Spec { return f.spec }

func (f *fakeAgent) Respond(_ context.Context, prompt string) (string, error) {
	if f.inFlight.Add(1) > 1 {
		f.t.Errorf("agent %s called concurrently", f.spec.DisplayName)
	}
	defer f.inFlight.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.n++
	n := f.n
	f.mu.Unlock()

	f.calls.add(f.spec.DisplayName, prompt)
	if f.fail != nil {
		if err := f.fail(n); err != nil {
			return "", &agent.BackendError{Agent: f.spec.DisplayName, Err: err}
		}
	}
	return fmt.Sprintf("%s-reply-%d", f.spec.DisplayName, n), nil
}

func newFake(t *testing.T, calls *callLog, name string, temp float64) *fakeAgent {
	return &fakeAgent{
		t:     t,
		calls: calls,
		spec: agent.Spec{
			DisplayName: name,
			ModelName:   name + "-model",
			ModelID:     name + "-code",
			Temperature: temp,
		},
	}
}

func roster(t *testing.T, calls *callLog, names ...string) ([]agent.Agent, []*fakeAgent) {
	agents := make([]agent.Agent, len(names))
	fakes := make([]*fakeAgent, len(names))
	for i, name := range names {
		fakes[i] = newFake(t, calls, name, 0.5)
		agents[i] = fakes[i]
	}
	return agents, fakes
}

type fakeNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *fakeNotifier) NotifyFinal(_ context.Context, task Task, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, task.OutputFile+":"+text)
	return nil
}
