package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"github.com/mtzanidakis/concilium/internal/agent"
)

const defaultPath = "concilium.yaml"

type Config struct {
	Models   []ModelConfig  `yaml:"MODELS"`
	Tasks    []TaskConfig   `yaml:"TASKS"`
	General  GeneralConfig  `yaml:"CONFIG"`
	Backends BackendsConfig `yaml:"BACKENDS"`
	Events   EventsConfig   `yaml:"EVENTS"`
	Telegram TelegramConfig `yaml:"TELEGRAM"`
}

type ModelConfig struct {
	AgentName       string   `yaml:"agent_name"`
	ModelName       string   `yaml:"model_name"`
	ModelCode       string   `yaml:"model_code"`
	Temperature     *float64 `yaml:"temperature"`
	Backend         string   `yaml:"backend"`
	History         string   `yaml:"history"`
	MaxTokens       int      `yaml:"max_tokens"`
	StripCodeFences bool     `yaml:"strip_code_fences"`
}

type TaskConfig struct {
	Request      string `yaml:"request"`
	Instructions string `yaml:"instructions"`
	OutputFile   string `yaml:"output_file"`
	FileName     string `yaml:"file_name"` // older configs
}

type GeneralConfig struct {
	GeneralInstructions   string   `yaml:"general_instructions"`
	HarmonizerName        string   `yaml:"harmonizer_name"`
	HarmonizerCode        string   `yaml:"harmonizer_code"`
	HarmonizerTemperature *float64 `yaml:"harmonizer_temperature"`
	HarmonizerBackend     string   `yaml:"harmonizer_backend"`
	HarmonizerHistory     string   `yaml:"harmonizer_history"`
	HarmonizerMaxTokens   int      `yaml:"harmonizer_max_tokens"`
	OutputDir             string   `yaml:"output_dir"`
	Parallel              bool     `yaml:"parallel"`
	MaxConcurrency        int      `yaml:"max_concurrency"`
	Schedule              string   `yaml:"schedule"`
	LogLevel              string   `yaml:"log_level"`
}

type BackendConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type BackendsConfig struct {
	Anthropic BackendConfig `yaml:"anthropic"`
	OpenAI    BackendConfig `yaml:"openai"`
}

// Get returns the credentials for a backend kind.
func (b BackendsConfig) Get(kind agent.Kind) BackendConfig {
	switch kind {
	case agent.KindAnthropic:
		return b.Anthropic
	case agent.KindOpenAI:
		return b.OpenAI
	}
	return BackendConfig{}
}

// EventsConfig controls progress events. With no URL an embedded server is
// started on Port.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Port    int    `yaml:"port"`
}

type TelegramConfig struct {
	Token   string  `yaml:"token"`
	ChatIDs []int64 `yaml:"chat_ids"`
}

const (
	defaultMaxTokens      = agent.DefaultMaxTokens
	defaultMaxConcurrency = 4
	defaultNATSPort       = 4222
)

// Load reads path, or $CONCILIUM_CONFIG, or concilium.yaml. JSON files are
// accepted as well.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONCILIUM_CONFIG")
	}
	if path == "" {
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}

	cfg, err := Parse(expandEnv(string(data)))
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document without defaults or validation.
func Parse(doc string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		return nil, &ConfigError{Field: "file", Reason: fmt.Sprintf("parse: %v", err)}
	}
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} only. Bare $ is common in task text.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Backends.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Backends.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Backends.OpenAI.BaseURL = v
	}
	if v := os.Getenv("CONCILIUM_OUTPUT_DIR"); v != "" {
		cfg.General.OutputDir = v
	}
	if v := os.Getenv("CONCILIUM_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("CONCILIUM_NATS_URL"); v != "" {
		cfg.Events.URL = v
		cfg.Events.Enabled = true
	}
}

func applyDefaults(cfg *Config) {
	for i := range cfg.Models {
		m := &cfg.Models[i]
		if m.Backend == "" {
			m.Backend = string(agent.KindOpenAI)
		}
		if m.History == "" {
			m.History = string(agent.Stateful)
		}
		if m.MaxTokens == 0 {
			m.MaxTokens = defaultMaxTokens
		}
		if m.ModelName == "" {
			m.ModelName = m.ModelCode
		}
	}
	for i := range cfg.Tasks {
		t := &cfg.Tasks[i]
		if t.OutputFile == "" {
			t.OutputFile = t.FileName
		}
	}

	g := &cfg.General
	if g.HarmonizerBackend == "" {
		g.HarmonizerBackend = string(agent.KindOpenAI)
	}
	if g.HarmonizerHistory == "" {
		g.HarmonizerHistory = string(agent.Stateful)
	}
	if g.HarmonizerMaxTokens == 0 {
		g.HarmonizerMaxTokens = defaultMaxTokens
	}
	if g.OutputDir == "" {
		g.OutputDir = "."
	}
	if g.MaxConcurrency <= 0 {
		g.MaxConcurrency = defaultMaxConcurrency
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}

	if cfg.Events.Enabled && cfg.Events.URL == "" && cfg.Events.Port == 0 {
		cfg.Events.Port = defaultNATSPort
	}
}

// ConfigError is one missing or invalid field. It is fatal before any task runs.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Validate reports every problem at once, joined.
func (c *Config) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	used := map[agent.Kind]bool{}

	if len(c.Models) == 0 {
		fail("MODELS", "at least one model is required")
	}
	for i, m := range c.Models {
		field := fmt.Sprintf("MODELS[%d]", i)
		if m.AgentName == "" {
			fail(field+".agent_name", "required")
		}
		if m.ModelCode == "" {
			fail(field+".model_code", "required")
		}
		checkTemperature(fail, field+".temperature", m.Temperature)
		checkAgentKind(fail, field, m.Backend, m.History)
		used[agent.Kind(m.Backend)] = true
	}

	if len(c.Tasks) == 0 {
		fail("TASKS", "at least one task is required")
	}
	for i, t := range c.Tasks {
		field := fmt.Sprintf("TASKS[%d]", i)
		if t.Request == "" {
			fail(field+".request", "required")
		}
		if t.Instructions == "" {
			fail(field+".instructions", "required")
		}
		if t.OutputFile == "" {
			fail(field+".output_file", "required")
		}
	}

	g := c.General
	if g.HarmonizerName == "" {
		fail("CONFIG.harmonizer_name", "required")
	}
	if g.HarmonizerCode == "" {
		fail("CONFIG.harmonizer_code", "required")
	}
	checkTemperature(fail, "CONFIG.harmonizer_temperature", g.HarmonizerTemperature)
	checkAgentKind(fail, "CONFIG.harmonizer", g.HarmonizerBackend, g.HarmonizerHistory)
	used[agent.Kind(g.HarmonizerBackend)] = true

	if g.Schedule != "" && !gronx.New().IsValid(g.Schedule) {
		fail("CONFIG.schedule", "invalid cron expression %q", g.Schedule)
	}
	if _, ok := levels[strings.ToLower(g.LogLevel)]; g.LogLevel != "" && !ok {
		fail("CONFIG.log_level", "unknown level %q", g.LogLevel)
	}

	for _, kind := range agent.Kinds {
		if !used[kind] {
			continue
		}
		cred := c.Backends.Get(kind)
		// Local OpenAI-compatible servers run without a key.
		if cred.APIKey == "" && cred.BaseURL == "" {
			fail("BACKENDS."+string(kind)+".api_key", "required by a configured model")
		}
	}

	if c.Telegram.Token != "" && len(c.Telegram.ChatIDs) == 0 {
		fail("TELEGRAM.chat_ids", "required when a token is set")
	}

	return errors.Join(errs...)
}

func checkTemperature(fail func(string, string, ...any), field string, t *float64) {
	if t == nil {
		fail(field, "required")
		return
	}
	if *t < 0 || *t > 2 {
		fail(field, "%v is outside [0,2]", *t)
	}
}

func checkAgentKind(fail func(string, string, ...any), field, backend, history string) {
	if !agent.Kind(backend).Valid() {
		fail(field+".backend", "unknown backend %q", backend)
	}
	switch agent.History(history) {
	case agent.Stateful, agent.Stateless:
	default:
		fail(field+".history", "unknown history mode %q", history)
	}
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps log_level onto slog, defaulting to info.
func (g GeneralConfig) SlogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(g.LogLevel)]; ok {
		return l
	}
	return slog.LevelInfo
}

// Spec converts a model entry into the agent's immutable identity.
func (m ModelConfig) Spec() agent.Spec {
	var temp float64
	if m.Temperature != nil {
		temp = *m.Temperature
	}
	return agent.Spec{
		DisplayName:     m.AgentName,
		ModelName:       m.ModelName,
		ModelID:         m.ModelCode,
		Temperature:     temp,
		MaxTokens:       m.MaxTokens,
		History:         agent.History(m.History),
		StripCodeFences: m.StripCodeFences,
	}
}

// HarmonizerSpec builds the harmonizer's identity. Its display and model
// names are both the configured harmonizer name.
func (g GeneralConfig) HarmonizerSpec() agent.Spec {
	var temp float64
	if g.HarmonizerTemperature != nil {
		temp = *g.HarmonizerTemperature
	}
	return agent.Spec{
		DisplayName: g.HarmonizerName,
		ModelName:   g.HarmonizerName,
		ModelID:     g.HarmonizerCode,
		Temperature: temp,
		MaxTokens:   g.HarmonizerMaxTokens,
		History:     agent.History(g.HarmonizerHistory),
	}
}
