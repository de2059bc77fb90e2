package di

import (
	"fmt"
	"time"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/infrastructure/browser/rod"
	"browser-agent/internal/infrastructure/llm/langchain"
	"browser-agent/internal/infrastructure/llm/openrouter"
	"browser-agent/internal/infrastructure/logger"
	"browser-agent/internal/infrastructure/recorder"
	"browser-agent/internal/usecase/agentmanager"
	"browser-agent/internal/usecase/browsermanager"
)

type Config struct {
	// LLMProvider selects the model backend: "openrouter" (tool calling)
	// or "langchain" (JSON text protocol).
	LLMProvider string
	APIKey      string
	Model       string
	BaseURL     string

	BrowserHeadless bool
	MaxSessions     int

	AcquireTimeout time.Duration
	StepTimeout    time.Duration
	MaxRunDuration time.Duration
	RetryBudget    int

	LogLevel     string
	LogDir       string
	RecordingDir string
}

type Container struct {
	Logger   *logger.ZapLogger
	Recorder output.RecorderPort
	Sessions *browsermanager.Manager
	Agents   *agentmanager.Manager
}

func NewContainer(cfg Config) (*Container, error) {
	logCfg := logger.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = cfg.LogLevel
	}
	if cfg.LogDir != "" {
		logCfg.Dir = cfg.LogDir
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	recordingDir := cfg.RecordingDir
	if recordingDir == "" {
		recordingDir = "recordings"
	}
	rec, err := recorder.NewFileRecorder(recordingDir, log)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	browserCfg := rod.DefaultConfig()
	browserCfg.Headless = cfg.BrowserHeadless
	factory := rod.NewFactory(browserCfg, rec, log)

	poolCfg := browsermanager.DefaultConfig()
	if cfg.MaxSessions > 0 {
		poolCfg.MaxSessions = cfg.MaxSessions
	}
	sessions := browsermanager.New(poolCfg, factory, log.WithField("component", "browsermanager"))

	model, err := newModel(cfg, log)
	if err != nil {
		rec.Close()
		log.Close()
		return nil, err
	}

	agentCfg := agentmanager.DefaultConfig()
	if cfg.AcquireTimeout > 0 {
		agentCfg.AcquireTimeout = cfg.AcquireTimeout
	}
	if cfg.MaxRunDuration > 0 {
		agentCfg.MaxRunDuration = cfg.MaxRunDuration
	}
	if cfg.StepTimeout > 0 {
		agentCfg.Run.StepTimeout = cfg.StepTimeout
	}
	if cfg.RetryBudget > 0 {
		agentCfg.Run.RetryBudget = cfg.RetryBudget
	}
	agents := agentmanager.New(agentCfg, sessions, model, rec, log.WithField("component", "agentmanager"))

	return &Container{
		Logger:   log,
		Recorder: rec,
		Sessions: sessions,
		Agents:   agents,
	}, nil
}

func newModel(cfg Config, log output.LoggerPort) (output.ModelPort, error) {
	switch cfg.LLMProvider {
	case "", "openrouter":
		orCfg := openrouter.DefaultConfig(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			orCfg.BaseURL = cfg.BaseURL
		}
		return openrouter.New(orCfg, log.WithField("component", "openrouter")), nil
	case "langchain":
		return langchain.New(langchain.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, log.WithField("component", "langchain"))
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// Close tears everything down in dependency order: runs first (which drains
// the session pool), then the sinks.
func (c *Container) Close() {
	if c.Agents != nil {
		c.Agents.Shutdown()
	}
	if c.Recorder != nil {
		_ = c.Recorder.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}
