package rod

import (
	"context"
	"fmt"
	"time"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/domain/entity"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

var _ output.BrowserSessionPort = (*Session)(nil)
var _ output.SessionProvisioner = (*Factory)(nil)

type Config struct {
	Headless   bool
	SlowMotion time.Duration
	// ElementTimeout bounds element lookups within an action.
	ElementTimeout time.Duration
	NoSandbox      bool
	DevTools       bool
}

func DefaultConfig() Config {
	return Config{
		Headless:       true,
		SlowMotion:     500 * time.Millisecond,
		ElementTimeout: 10 * time.Second,
		NoSandbox:      true,
		DevTools:       false,
	}
}

// Factory launches one browser process per provisioned session. Artifacts
// produced by sessions (screenshots) go to the recorder keyed by session id.
type Factory struct {
	cfg      Config
	recorder output.RecorderPort
	logger   output.LoggerPort
}

func NewFactory(cfg Config, recorder output.RecorderPort, logger output.LoggerPort) *Factory {
	return &Factory{cfg: cfg, recorder: recorder, logger: logger}
}

func (f *Factory) Provision(ctx context.Context) (output.BrowserSessionPort, error) {
	l := launcher.New().
		Headless(f.cfg.Headless).
		Devtools(f.cfg.DevTools).
		NoSandbox(f.cfg.NoSandbox).
		Delete("use-mock-keychain").
		Set("disable-web-security").
		Set("allow-running-insecure-content").
		Set("disable-setuid-sandbox")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().
		ControlURL(url).
		Context(ctx).
		SlowMotion(f.cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	s := &Session{
		id:       fmt.Sprintf("rod-%d", time.Now().UnixNano()),
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  f.cfg.ElementTimeout,
		recorder: f.recorder,
		logger:   f.logger.WithField("component", "rod"),
	}
	return s, nil
}

// Session drives a single live browser through one page. The pool enforces
// single-writer access, so no internal locking is needed here.
type Session struct {
	id       string
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	recorder output.RecorderPort
	logger   output.LoggerPort
}

// Execute dispatches one action by name. An error is wrapped in
// entity.SessionLostError only when a follow-up probe shows the browser
// itself is gone; everything else is recoverable from the run's viewpoint.
func (s *Session) Execute(ctx context.Context, action entity.Action) (string, error) {
	obs, err := s.dispatch(ctx, action)
	if err == nil {
		return obs, nil
	}
	if probeErr := s.HealthCheck(ctx); probeErr != nil {
		return "", &entity.SessionLostError{Err: fmt.Errorf("%v (probe: %v)", err, probeErr)}
	}
	return "", err
}

// HealthCheck probes the page over the devtools connection.
func (s *Session) HealthCheck(ctx context.Context) error {
	if _, err := s.page.Context(ctx).Info(); err != nil {
		return fmt.Errorf("page unreachable: %w", err)
	}
	return nil
}

func (s *Session) Terminate() {
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	s.logger.Info("Browser session terminated", "session_id", s.id)
}
