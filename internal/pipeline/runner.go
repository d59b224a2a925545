package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mtzanidakis/concilium/internal/agent"
	"github.com/mtzanidakis/concilium/internal/audit"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Options configures a Runner or Driver.
type Options struct {
	Log            *audit.Log
	Recorder       *audit.Recorder
	Parallel       bool
	MaxConcurrency int
	Publisher      Publisher
	Notifier       Notifier
}

// Runner executes the five-stage pipeline for one task at a time.
type Runner struct {
	agents     []agent.Agent
	harmonizer *agent.Harmonizer
	log        *audit.Log
	recorder   *audit.Recorder
	parallel   bool
	limit      int
	pub        Publisher
	runID      string
	now        func() time.Time
}

// NewRunner binds the roster and harmonizer. The harmonizer must be non-nil.
func NewRunner(agents []agent.Agent, harmonizer *agent.Harmonizer, opts Options) *Runner {
	if opts.Log == nil {
		opts.Log = audit.NewLog(".")
	}
	if opts.Recorder == nil {
		opts.Recorder = audit.NewRecorder()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultConcurrency
	}
	return &Runner{
		agents:     agents,
		harmonizer: harmonizer,
		log:        opts.Log,
		recorder:   opts.Recorder,
		parallel:   opts.Parallel,
		limit:      opts.MaxConcurrency,
		pub:        opts.Publisher,
		runID:      uuid.New().String(),
		now:        time.Now,
	}
}

// call is one scheduled respond invocation within a stage.
type call struct {
	agent   int
	subject int
	prompt  string
}

// Run drives one task through every stage. It never aborts: failed calls
// leave an in-band error string in their slot.
func (r *Runner) Run(ctx context.Context, index int, task Task) *Result {
	n := len(r.agents)
	res := &Result{
		Task:      task,
		Index:     index,
		Critiques: NewCritiqueMatrix(n),
	}

	for st := StageInitial; st != StageDone; st = st.Next() {
		slog.Info("stage started", "run", r.runID, "task", index, "stage", st.String())
		publishEvent(r.pub, r.runID, "stage_started", map[string]any{"task": index, "stage": st.String()})

		switch st {
		case StageInitial:
			calls := make([]call, n)
			prompt := initialPrompt(task)
			for i := range r.agents {
				calls[i] = call{agent: i, subject: -1, prompt: prompt}
			}
			res.Initial = r.execute(ctx, st, res, calls)

		case StageCritique:
			calls := make([]call, 0, n*(n-1))
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					if i != j {
						calls = append(calls, call{agent: i, subject: j, prompt: critiquePrompt(res.Initial[j])})
					}
				}
			}
			out := r.execute(ctx, st, res, calls)
			for k, c := range calls {
				res.Critiques.Set(c.agent, c.subject, out[k])
			}

		case StageRefine:
			calls := make([]call, n)
			for i := range r.agents {
				calls[i] = call{agent: i, subject: -1, prompt: refinePrompt(res.Critiques.Received(i))}
			}
			res.Refined = r.execute(ctx, st, res, calls)

		case StageHarmonize:
			calls := make([]call, n)
			prompt := harmonizePrompt(res.Refined)
			for i := range r.agents {
				calls[i] = call{agent: i, subject: -1, prompt: prompt}
			}
			res.Harmonized = r.execute(ctx, st, res, calls)

		case StageSynthesis:
			res.Final = r.synthesize(ctx, res)
		}

		slog.Info("stage completed", "run", r.runID, "task", index, "stage", st.String())
		publishEvent(r.pub, r.runID, "stage_completed", map[string]any{"task": index, "stage": st.String()})
	}

	publishEvent(r.pub, r.runID, "task_completed", map[string]any{
		"task":        index,
		"output_file": task.OutputFile,
		"records":     len(res.Records),
	})
	return res
}

// execute issues calls and commits their results in slice order. In parallel
// mode each agent's calls still run one after another on a single goroutine,
// and commits wait for every earlier slot.
func (r *Runner) execute(ctx context.Context, st Stage, res *Result, calls []call) []string {
	out := make([]string, len(calls))

	if !r.parallel {
		for k, c := range calls {
			out[k] = r.respond(ctx, r.agents[c.agent], c.prompt)
			r.commit(st, res, c, out[k])
		}
		return out
	}

	done := make([]chan struct{}, len(calls))
	byAgent := make(map[int][]int)
	var order []int
	for k, c := range calls {
		done[k] = make(chan struct{})
		if _, ok := byAgent[c.agent]; !ok {
			order = append(order, c.agent)
		}
		byAgent[c.agent] = append(byAgent[c.agent], k)
	}

	var g errgroup.Group
	g.SetLimit(r.limit)
	go func() {
		for _, a := range order {
			slots := byAgent[a]
			g.Go(func() error {
				for _, k := range slots {
					out[k] = r.respond(ctx, r.agents[calls[k].agent], calls[k].prompt)
					close(done[k])
				}
				return nil
			})
		}
	}()

	for k, c := range calls {
		<-done[k]
		r.commit(st, res, c, out[k])
	}
	_ = g.Wait()
	return out
}

// respond converts a failed call into the in-band error text.
func (r *Runner) respond(ctx context.Context, a agent.Agent, prompt string) string {
	text, err := a.Respond(ctx, prompt)
	if err != nil {
		slog.Warn("agent call failed", "run", r.runID, "agent", a.Spec().DisplayName, "error", err)
		return errorText(err)
	}
	return text
}

func errorText(err error) string {
	var be *agent.BackendError
	if errors.As(err, &be) && be.Err != nil {
		return "Error: " + be.Err.Error()
	}
	return "Error: " + err.Error()
}

func (r *Runner) commit(st Stage, res *Result, c call, text string) {
	a := r.agents[c.agent]
	r.record(res, StageRecord{
		Stage:      st,
		AgentIndex: c.agent,
		Subject:    c.subject,
		Response:   text,
		Timestamp:  r.now(),
	})

	attrs := []any{"run", r.runID, "task", res.Index, "stage", st.String(), "agent", c.agent + 1}
	if c.subject >= 0 {
		attrs = append(attrs, "subject", c.subject+1)
	}
	slog.Info("agent responded", attrs...)
	slog.Debug("audit", "block", r.recorder.Format(c.agent, audit.OmittedRequest, a.Spec()))

	name := audit.FileName(st.LogPrefix(), res.Task.OutputFile)
	entry := audit.Entry(text, r.recorder.Format(c.agent, res.Task.Request, a.Spec()))
	r.appendLog(res.Index, name, entry)

	data := map[string]any{"task": res.Index, "stage": st.String(), "agent": c.agent}
	if c.subject >= 0 {
		data["subject"] = c.subject
	}
	publishEvent(r.pub, r.runID, "agent_responded", data)
}

// synthesize runs the single harmonizer call. Its output goes to the bare
// task file without an audit block.
func (r *Runner) synthesize(ctx context.Context, res *Result) string {
	text := r.respond(ctx, r.harmonizer, synthesisPrompt(res.Harmonized))

	index := len(r.agents)
	r.record(res, StageRecord{
		Stage:      StageSynthesis,
		AgentIndex: index,
		Subject:    -1,
		Response:   text,
		Timestamp:  r.now(),
	})
	slog.Info("agent responded", "run", r.runID, "task", res.Index, "stage", StageSynthesis.String(), "agent", "harmonizer")
	slog.Debug("audit", "block", r.recorder.Format(index, audit.OmittedRequest, r.harmonizer.Spec()))

	r.appendLog(res.Index, audit.FileName(StageSynthesis.LogPrefix(), res.Task.OutputFile), text)
	return text
}

// record is only called from the goroutine running Run.
func (r *Runner) record(res *Result, rec StageRecord) {
	res.Records = append(res.Records, rec)
}

func (r *Runner) appendLog(task int, name, text string) {
	if err := r.log.Append(name, text); err != nil {
		slog.Error("log write failed", "run", r.runID, "task", task, "file", name, "error", err)
		publishEvent(r.pub, r.runID, "log_write_failed", map[string]any{"task": task, "file": name, "error": err.Error()})
	}
}

// RunID identifies the run this runner reports under.
func (r *Runner) RunID() string { return r.runID }
