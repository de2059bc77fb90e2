package browsermanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-agent/internal/application/port/output"
	"browser-agent/internal/domain/entity"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type Config struct {
	// MaxSessions caps the number of live browser sessions.
	MaxSessions int
	// ProvisionRetries bounds how often a failed browser launch is retried
	// within a single Acquire.
	ProvisionRetries int
	// ShutdownGrace is how long Shutdown waits for holders to release
	// before force-terminating their sessions.
	ShutdownGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxSessions:      3,
		ProvisionRetries: 2,
		ShutdownGrace:    15 * time.Second,
	}
}

// SessionHandle is what a run receives from Acquire. The handle is valid
// until it is passed back to Release, exactly once.
type SessionHandle struct {
	ID      string
	Session output.BrowserSessionPort
}

type managedSession struct {
	id         string
	port       output.BrowserSessionPort
	holder     string
	health     entity.SessionHealth
	createdAt  time.Time
	terminated bool
}

// Manager owns the pool of browser sessions. All pool mutations are
// serialized under mu; the semaphore bounds total capacity and makes
// Acquire block until a slot frees up or the caller's context expires.
type Manager struct {
	cfg         Config
	provisioner output.SessionProvisioner
	logger      output.LoggerPort

	sem *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*managedSession
	free     []string
	closed   bool

	holders sync.WaitGroup
}

func New(cfg Config, provisioner output.SessionProvisioner, logger output.LoggerPort) *Manager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultConfig().MaxSessions
	}
	if cfg.ProvisionRetries < 0 {
		cfg.ProvisionRetries = 0
	}
	return &Manager{
		cfg:         cfg,
		provisioner: provisioner,
		logger:      logger,
		sem:         semaphore.NewWeighted(int64(cfg.MaxSessions)),
		sessions:    make(map[string]*managedSession),
	}
}

// Acquire hands out a free healthy session, or provisions a new one while
// capacity allows. It blocks until the caller's context expires when the
// pool is saturated. The holder string identifies the run for bookkeeping.
func (m *Manager) Acquire(ctx context.Context, holder string) (*SessionHandle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, entity.ErrShuttingDown
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrResourceExhausted, err)
	}

	// Shutdown may have begun while this caller was blocked on the
	// semaphore; a permit freed by a straggler release must not admit it.
	if m.isClosed() {
		m.sem.Release(1)
		return nil, entity.ErrShuttingDown
	}

	// A free session is reused only after passing a health probe. A failed
	// probe evicts it and falls through to provisioning a replacement; the
	// broken session is never handed out.
	for {
		ms := m.popFree()
		if ms == nil {
			break
		}
		if err := ms.port.HealthCheck(ctx); err != nil {
			m.logger.Warn("Evicting unhealthy session", "session_id", ms.id, "error", err)
			m.evict(ms)
			continue
		}
		m.bind(ms, holder)
		return &SessionHandle{ID: ms.id, Session: ms.port}, nil
	}

	ms, err := m.provision(ctx)
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}
	m.bind(ms, holder)
	return &SessionHandle{ID: ms.id, Session: ms.port}, nil
}

// Release returns the session to the pool. clean=false marks the session
// unhealthy and tears it down asynchronously; a replacement is provisioned
// on demand by the next Acquire since capacity is freed here.
func (m *Manager) Release(handle *SessionHandle, clean bool) {
	if handle == nil {
		return
	}

	m.mu.Lock()
	ms, ok := m.sessions[handle.ID]
	if !ok || ms.holder == entity.SessionHolderFree {
		m.mu.Unlock()
		m.logger.Warn("Release of unknown or already-free session", "session_id", handle.ID)
		return
	}
	if clean && !m.closed {
		ms.holder = entity.SessionHolderFree
		m.free = append(m.free, ms.id)
	} else {
		ms.health = entity.SessionUnhealthy
		delete(m.sessions, ms.id)
		if !ms.terminated {
			ms.terminated = true
			go func(port output.BrowserSessionPort) {
				port.Terminate()
			}(ms.port)
		}
	}
	m.mu.Unlock()

	m.holders.Done()
	m.sem.Release(1)
}

// Shutdown drains the pool: new acquisitions are refused, in-flight holders
// get the configured grace period, then every remaining session is
// force-terminated.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	released := make(chan struct{})
	go func() {
		m.holders.Wait()
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(m.cfg.ShutdownGrace):
		m.logger.Warn("Shutdown grace period elapsed, force-terminating held sessions")
	}

	// Held sessions keep their map entry so a straggler Release can still
	// settle its bookkeeping; only the port is torn down here.
	m.mu.Lock()
	terminate := make([]output.BrowserSessionPort, 0, len(m.sessions))
	for id, ms := range m.sessions {
		if !ms.terminated {
			ms.terminated = true
			terminate = append(terminate, ms.port)
		}
		ms.health = entity.SessionUnhealthy
		if ms.holder == entity.SessionHolderFree {
			delete(m.sessions, id)
		}
	}
	m.free = nil
	m.mu.Unlock()

	for _, port := range terminate {
		port.Terminate()
	}
	m.logger.Info("Browser pool shut down", "terminated", len(terminate))
}

// Sessions returns a snapshot of the pool's bookkeeping records.
func (m *Manager) Sessions() []entity.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]entity.SessionRecord, 0, len(m.sessions))
	for _, ms := range m.sessions {
		records = append(records, entity.SessionRecord{
			ID:        ms.id,
			Holder:    ms.holder,
			Health:    ms.health,
			CreatedAt: ms.createdAt,
		})
	}
	return records
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) popFree() *managedSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.closed && len(m.free) > 0 {
		id := m.free[0]
		m.free = m.free[1:]
		if ms, ok := m.sessions[id]; ok {
			return ms
		}
	}
	return nil
}

func (m *Manager) bind(ms *managedSession, holder string) {
	m.mu.Lock()
	ms.holder = holder
	m.mu.Unlock()
	m.holders.Add(1)
}

func (m *Manager) evict(ms *managedSession) {
	m.mu.Lock()
	ms.health = entity.SessionUnhealthy
	ms.terminated = true
	delete(m.sessions, ms.id)
	m.mu.Unlock()
	go ms.port.Terminate()
}

func (m *Manager) provision(ctx context.Context) (*managedSession, error) {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.ProvisionRetries; attempt++ {
		port, err := m.provisioner.Provision(ctx)
		if err != nil {
			lastErr = err
			m.logger.Warn("Browser launch failed", "attempt", attempt+1, "error", err)
			continue
		}
		ms := &managedSession{
			id:        uuid.NewString(),
			port:      port,
			holder:    entity.SessionHolderFree,
			health:    entity.SessionHealthy,
			createdAt: time.Now(),
		}
		m.mu.Lock()
		if m.closed {
			// Shutdown's terminate pass may already have run; a session
			// registered now would leak its browser process.
			m.mu.Unlock()
			port.Terminate()
			return nil, entity.ErrShuttingDown
		}
		m.sessions[ms.id] = ms
		m.mu.Unlock()
		m.logger.Info("Provisioned browser session", "session_id", ms.id)
		return ms, nil
	}
	return nil, fmt.Errorf("%w: %v", entity.ErrProvisionFailed, lastErr)
}
