package concurrency

import (
	"log/slog"
	"sync"
	"time"
)

// MutexConfig names a mutex for diagnostics and optionally turns on
// lock-hold logging. Name shows up in log lines emitted when
// DebugMode is set, which is how a stuck topology mutex gets found
// during development instead of in production.
type MutexConfig struct {
	Name      string
	DebugMode bool
}

// SmartMutex is a sync.Mutex that knows its own name and can log how
// long it was held, used for node-wide locks such as the sequencer
// triple, where a stuck critical section is otherwise invisible.
type SmartMutex struct {
	cfg   MutexConfig
	mu    sync.Mutex
	start time.Time
}

func NewSmartMutex(cfg MutexConfig) *SmartMutex {
	return &SmartMutex{cfg: cfg}
}

func (m *SmartMutex) Lock() {
	m.mu.Lock()
	if m.cfg.DebugMode {
		m.start = time.Now()
	}
}

func (m *SmartMutex) Unlock() {
	if m.cfg.DebugMode && !m.start.IsZero() {
		slog.Debug("mutex held", "name", m.cfg.Name, "duration", time.Since(m.start))
	}
	m.mu.Unlock()
}

// SmartRWMutex is the read-write counterpart, used for state read far
// more often than it is written (replica stack, finger table).
type SmartRWMutex struct {
	cfg   MutexConfig
	mu    sync.RWMutex
	start time.Time
}

func NewSmartRWMutex(cfg MutexConfig) *SmartRWMutex {
	return &SmartRWMutex{cfg: cfg}
}

func (m *SmartRWMutex) Lock() {
	m.mu.Lock()
	if m.cfg.DebugMode {
		m.start = time.Now()
	}
}

func (m *SmartRWMutex) Unlock() {
	if m.cfg.DebugMode && !m.start.IsZero() {
		slog.Debug("rwmutex held (write)", "name", m.cfg.Name, "duration", time.Since(m.start))
	}
	m.mu.Unlock()
}

func (m *SmartRWMutex) RLock() {
	m.mu.RLock()
}

func (m *SmartRWMutex) RUnlock() {
	m.mu.RUnlock()
}
