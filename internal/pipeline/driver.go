package pipeline

import (
	"context"
	"log/slog"

	"github.com/mtzanidakis/concilium/internal/agent"
)

// Notifier is told about every task's final synthesis.
type Notifier interface {
	NotifyFinal(ctx context.Context, task Task, text string) error
}

// Driver runs an ordered list of tasks over one roster. Agents are reused
// across tasks; stage state is not.
type Driver struct {
	agents     []agent.Agent
	harmonizer *agent.Harmonizer
	opts       Options
}

func NewDriver(agents []agent.Agent, harmonizer *agent.Harmonizer, opts Options) *Driver {
	return &Driver{
		agents:     agents,
		harmonizer: harmonizer,
		opts:       opts,
	}
}

// Run executes every task in order and returns their results.
func (d *Driver) Run(ctx context.Context, tasks []Task) []*Result {
	runner := NewRunner(d.agents, d.harmonizer, d.opts)
	runID := runner.RunID()

	slog.Info("starting run", "run", runID, "agents", len(d.agents), "tasks", len(tasks))
	publishEvent(d.opts.Publisher, runID, "run_started", map[string]any{
		"agents": len(d.agents),
		"tasks":  len(tasks),
	})

	results := make([]*Result, 0, len(tasks))
	for k, task := range tasks {
		slog.Info("starting task", "run", runID, "task", k, "output_file", task.OutputFile)
		res := runner.Run(ctx, k, task)
		results = append(results, res)

		if d.opts.Notifier != nil {
			if err := d.opts.Notifier.NotifyFinal(ctx, task, res.Final); err != nil {
				slog.Error("notify final output failed", "run", runID, "task", k, "error", err)
			}
		}
	}

	publishEvent(d.opts.Publisher, runID, "run_completed", map[string]any{"tasks": len(results)})
	slog.Info("run finished", "run", runID, "tasks", len(results))
	return results
}
