package main

import (
	"fmt"
	"net/http"

	"github.com/mtzanidakis/concilium/internal/agent"
	"github.com/mtzanidakis/concilium/internal/config"
	"github.com/mtzanidakis/concilium/internal/pipeline"
)

// buildRoster constructs the main agents in configuration order and the
// harmonizer. A nil client gets the backend default.
func buildRoster(cfg *config.Config, client *http.Client) ([]agent.Agent, *agent.Harmonizer, error) {
	system := cfg.General.GeneralInstructions

	agents := make([]agent.Agent, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		a, err := newAgent(cfg, m.Spec(), agent.Kind(m.Backend), system, client)
		if err != nil {
			return nil, nil, err
		}
		agents = append(agents, a)
	}

	h, err := newAgent(cfg, cfg.General.HarmonizerSpec(), agent.Kind(cfg.General.HarmonizerBackend), system, client)
	if err != nil {
		return nil, nil, err
	}
	return agents, agent.NewHarmonizer(h), nil
}

func newAgent(cfg *config.Config, spec agent.Spec, kind agent.Kind, system string, client *http.Client) (agent.Agent, error) {
	cred := cfg.Backends.Get(kind)
	backend, err := agent.NewBackend(kind, agent.Credentials{APIKey: cred.APIKey, BaseURL: cred.BaseURL}, client)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", spec.DisplayName, err)
	}
	return agent.New(spec, backend, system)
}

func buildTasks(cfg *config.Config) []pipeline.Task {
	tasks := make([]pipeline.Task, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		tasks[i] = pipeline.Task{
			Request:      t.Request,
			Instructions: t.Instructions,
			OutputFile:   t.OutputFile,
		}
	}
	return tasks
}
