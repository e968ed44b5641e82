package cache

import (
	"sync"
	"time"

	"salestats/internal/log"
)

// Cache is a keyed store with expiring entries.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches that drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Purger is implemented by caches that can be emptied at once.
type Purger interface {
	Purge()
}

// Managed is what the Manager needs from a cache.
type Managed interface {
	Cleaner
	Purger
}

// Manager runs periodic expiry for registered caches and purges them all
// when the underlying data changes.
type Manager struct {
	mu          sync.Mutex
	caches      map[string]Managed
	logger      *log.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		caches:      make(map[string]Managed),
		logger:      logger.WithComponent(log.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a named cache to the manager.
func (m *Manager) Register(name string, c Managed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// PurgeAll empties every registered cache.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.caches {
		c.Purge()
	}
	m.logger.Debug("Caches purged", "caches", len(m.caches))
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || interval <= 0 {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			m.mu.Unlock()
			if cleaned > 0 {
				m.logger.Debug("Expired cache entries removed", "count", cleaned)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
