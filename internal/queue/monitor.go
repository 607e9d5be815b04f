package queue

import (
	"log/slog"
	"sync"
)

// NetworkMonitor is the single source of truth for connectivity. The host
// application injects platform transitions through SetOnline; the engine
// and any other interested party observe them through OnChange.
//
// A monitor with no signal attached reports online, so a platform without
// a connectivity API fails open instead of deadlocking the queue.
type NetworkMonitor struct {
	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(online bool)
	logger    *slog.Logger
}

// NewNetworkMonitor creates a monitor that starts online.
func NewNetworkMonitor(logger *slog.Logger) *NetworkMonitor {
	return &NetworkMonitor{
		online:    true,
		listeners: make(map[int]func(bool)),
		logger:    logger.With("component", "network_monitor"),
	}
}

// IsOnline reports the current connectivity state.
func (m *NetworkMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a platform connectivity transition. Listeners are
// notified exactly once per actual state change; repeated reports of the
// same state are coalesced so a flapping platform signal cannot trigger
// duplicate drains.
func (m *NetworkMonitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	m.logger.Info("connectivity changed", "online", online)
	// Invoked outside the lock so a listener may call back into the
	// monitor without deadlocking.
	for _, l := range listeners {
		l(online)
	}
}

// OnChange registers a callback invoked on every connectivity transition.
// It returns an unsubscribe function; calling it more than once is safe.
func (m *NetworkMonitor) OnChange(cb func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = cb
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
