// Package netmon tracks backend reachability and notifies observers of
// online/offline transitions.
package netmon

import (
	"sync"

	"feedsync/internal/logging"
)

// Monitor holds the current online flag. Repeated signals with the same value
// are ignored, so observers only ever see real transitions.
type Monitor struct {
	logger *logging.Logger

	mu        sync.Mutex
	online    bool
	nextID    int
	onChange  map[int]func(bool)
	onOnline  map[int]func()
	callbacks sync.Mutex
}

func New(initial bool, logger *logging.Logger) *Monitor {
	if logger == nil {
		panic("netmon.New: logger must not be nil")
	}
	return &Monitor{
		logger:   logger,
		online:   initial,
		onChange: map[int]func(bool){},
		onOnline: map[int]func(){},
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a platform connectivity signal.
func (m *Monitor) Set(online bool) {
	// Serializes delivery so observers see transitions in order.
	m.callbacks.Lock()
	defer m.callbacks.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	changed := make([]func(bool), 0, len(m.onChange))
	for _, fn := range m.onChange {
		changed = append(changed, fn)
	}
	var restored []func()
	if online {
		restored = make([]func(), 0, len(m.onOnline))
		for _, fn := range m.onOnline {
			restored = append(restored, fn)
		}
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("network online")
	} else {
		m.logger.Warn("network offline")
	}
	for _, fn := range changed {
		fn(online)
	}
	for _, fn := range restored {
		fn()
	}
}

// OnChange registers fn for every transition. The returned func unregisters it.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	if fn == nil {
		panic("netmon.Monitor.OnChange: callback must not be nil")
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.onChange[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.onChange, id)
		m.mu.Unlock()
	}
}

// OnOnline registers fn for offline to online transitions only. It is not
// called for the initial state.
func (m *Monitor) OnOnline(fn func()) func() {
	if fn == nil {
		panic("netmon.Monitor.OnOnline: callback must not be nil")
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.onOnline[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.onOnline, id)
		m.mu.Unlock()
	}
}
