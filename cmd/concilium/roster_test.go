package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mtzanidakis/concilium/internal/agent"
	"github.com/mtzanidakis/concilium/internal/audit"
	"github.com/mtzanidakis/concilium/internal/config"
	"github.com/mtzanidakis/concilium/internal/pipeline"
)

func fakeBackends(t *testing.T) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		reply := fmt.Sprintf("answer %d", n)
		switch r.URL.Path {
		case "/v1/messages":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": []map[string]any{{"type": "text", "text": reply}},
			})
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": reply}}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func loadTestConfig(t *testing.T, backendURL, outDir string) *config.Config {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL", "CONCILIUM_OUTPUT_DIR", "CONCILIUM_TELEGRAM_TOKEN", "CONCILIUM_NATS_URL"} {
		t.Setenv(k, "")
	}
	doc := fmt.Sprintf(`
MODELS:
  - {agent_name: AgentX, model_name: Claude, model_code: claude-x, temperature: 0.5, backend: anthropic}
  - {agent_name: AgentY, model_name: GPT, model_code: gpt-y, temperature: 0.7, backend: openai, history: stateless}
TASKS:
  - {request: Define entropy, instructions: Be concise, output_file: entropy.tex}
CONFIG:
  general_instructions: You are careful.
  harmonizer_name: Harmony
  harmonizer_code: gpt-h
  harmonizer_temperature: 0.2
  output_dir: %q
BACKENDS:
  anthropic: {api_key: sk-ant, base_url: %q}
  openai: {api_key: sk-oa, base_url: %q}
`, outDir, backendURL, backendURL)

	path := filepath.Join(t.TempDir(), "concilium.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return cfg
}

func TestBuildRoster(t *testing.T) {
	srv, _ := fakeBackends(t)
	cfg := loadTestConfig(t, srv.URL, t.TempDir())

	agents, harmonizer, err := buildRoster(cfg, srv.Client())
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if _, ok := agents[0].(*agent.StatefulAgent); !ok {
		t.Errorf("expected AgentX stateful, got %T", agents[0])
	}
	if _, ok := agents[1].(*agent.StatelessAgent); !ok {
		t.Errorf("expected AgentY stateless, got %T", agents[1])
	}
	if agents[1].Spec().Temperature != 0.7 {
		t.Errorf("unexpected AgentY spec: %+v", agents[1].Spec())
	}
	if harmonizer.Spec().DisplayName != "Harmony" {
		t.Errorf("unexpected harmonizer: %+v", harmonizer.Spec())
	}

	tasks := buildTasks(cfg)
	if len(tasks) != 1 || tasks[0].OutputFile != "entropy.tex" || tasks[0].Instructions != "Be concise" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestEndToEnd(t *testing.T) {
	srv, calls := fakeBackends(t)
	out := t.TempDir()
	cfg := loadTestConfig(t, srv.URL, out)

	agents, harmonizer, err := buildRoster(cfg, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	d := pipeline.NewDriver(agents, harmonizer, pipeline.Options{Log: audit.NewLog(cfg.General.OutputDir)})
	results := d.Run(context.Background(), buildTasks(cfg))

	if got := calls.Load(); got != 9 {
		t.Errorf("expected 9 backend calls, got %d", got)
	}
	for _, prefix := range []string{"log_responses_", "log_critiques_", "log_refined_", "log_harmonized_"} {
		data, err := os.ReadFile(filepath.Join(out, prefix+"entropy.tex"))
		if err != nil {
			t.Fatalf("read %s: %v", prefix, err)
		}
		if got := strings.Count(string(data), "\\section{Audit trail}"); got != 2 {
			t.Errorf("%s: expected 2 entries, got %d", prefix, got)
		}
	}

	final, err := os.ReadFile(filepath.Join(out, "entropy.tex"))
	if err != nil {
		t.Fatal(err)
	}
	if string(final) != "answer 9" || results[0].Final != "answer 9" {
		t.Errorf("unexpected final output %q", final)
	}
	if strings.Contains(string(final), "Audit trail") {
		t.Error("final output must not carry an audit block")
	}

	hist := agents[0].(*agent.StatefulAgent).History()
	if len(hist) != 8 {
		t.Errorf("expected AgentX to hold 4 exchanges, got %d turns", len(hist))
	}
}
