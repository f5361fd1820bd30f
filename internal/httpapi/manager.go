package httpapi

import (
	"sync"
	"time"

	"tollgate/internal/checkout"
)

// defaultClientIdleTTL is how long an inactive client keeps its orchestrator.
const defaultClientIdleTTL = 30 * time.Minute

// Manager hands out one orchestrator per client, so each buyer holds at most
// one active checkout session. Clients not seen within the idle window are
// evicted on the next lookup, which keeps the map bounded against arbitrary
// client ids; a client holding a busy session is never evicted.
type Manager struct {
	build   func() *checkout.Orchestrator
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	clients map[string]*clientEntry
}

type clientEntry struct {
	orch     *checkout.Orchestrator
	lastSeen time.Time
}

// NewManager constructs a Manager around an orchestrator factory.
func NewManager(build func() *checkout.Orchestrator) *Manager {
	if build == nil {
		panic("httpapi: orchestrator factory is required")
	}
	return &Manager{
		build:   build,
		idleTTL: defaultClientIdleTTL,
		now:     time.Now,
		clients: make(map[string]*clientEntry),
	}
}

// ForClient returns the client's orchestrator, creating it on first use.
func (m *Manager) ForClient(clientID string) *checkout.Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictIdleLocked()
	entry, ok := m.clients[clientID]
	if !ok {
		entry = &clientEntry{orch: m.build()}
		m.clients[clientID] = entry
	}
	entry.lastSeen = m.now()
	return entry.orch
}

// ClientCount reports how many clients currently hold an orchestrator.
func (m *Manager) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// evictIdleLocked drops clients last seen before the idle window whose
// session is not busy. Snapshot takes the orchestrator mutex, which is never
// held while calling back into the manager, so the lock order is safe.
func (m *Manager) evictIdleLocked() {
	cutoff := m.now().Add(-m.idleTTL)
	for id, entry := range m.clients {
		if entry.lastSeen.After(cutoff) {
			continue
		}
		if entry.orch.Snapshot().Step.Busy() {
			continue
		}
		delete(m.clients, id)
	}
}
