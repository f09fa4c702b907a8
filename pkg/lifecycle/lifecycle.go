// Package lifecycle tracks host process state the session layer reacts to:
// whether the app surface is focused and whether the network is reachable.
// The host drives both managers explicitly; nothing is observed implicitly.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"authbridge/pkg/client"
	"authbridge/pkg/logging"
)

// refreshTimeout bounds one lifecycle-triggered session refetch.
const refreshTimeout = 30 * time.Second

// FocusManager tracks whether the host surface is in the foreground. Setup
// must be called before state changes are accepted.
type FocusManager struct {
	mu          sync.Mutex
	initialized bool
	focused     bool
	subscribers map[int]func(bool)
	nextID      int
}

// NewFocusManager creates an unfocused, uninitialized manager.
func NewFocusManager() *FocusManager {
	return &FocusManager{subscribers: make(map[int]func(bool))}
}

// Setup marks the manager ready. Calling it again is a no-op.
func (m *FocusManager) Setup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
}

// Focused reports the current focus state.
func (m *FocusManager) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Subscribe registers a callback for focus transitions. The returned
// function removes the subscription; calling it repeatedly is safe.
func (m *FocusManager) Subscribe(callback func(focused bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
		})
	}
}

// SetFocused records a focus change and notifies subscribers on actual
// transitions. Changes before Setup are dropped.
func (m *FocusManager) SetFocused(focused bool) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		logging.Debug("Lifecycle", "Dropping focus change before setup")
		return
	}
	if m.focused == focused {
		m.mu.Unlock()
		return
	}
	m.focused = focused
	subscribers := snapshotSubscribers(m.subscribers)
	m.mu.Unlock()

	for _, callback := range subscribers {
		callback(focused)
	}
}

// OnlineManager tracks network reachability. Without a wired connectivity
// source the state stays online, so the session layer never suppresses
// requests on a false negative.
type OnlineManager struct {
	mu          sync.Mutex
	initialized bool
	online      bool
	subscribers map[int]func(bool)
	nextID      int
}

// NewOnlineManager creates a manager that reports online until told
// otherwise.
func NewOnlineManager() *OnlineManager {
	return &OnlineManager{online: true, subscribers: make(map[int]func(bool))}
}

// Setup marks the manager ready. Calling it again is a no-op.
func (m *OnlineManager) Setup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
}

// Online reports the current reachability state.
func (m *OnlineManager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a callback for reachability transitions.
func (m *OnlineManager) Subscribe(callback func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subscribers, id)
		})
	}
}

// SetOnline records a reachability change and notifies subscribers on
// actual transitions. Changes before Setup are dropped.
func (m *OnlineManager) SetOnline(online bool) {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		logging.Debug("Lifecycle", "Dropping connectivity change before setup")
		return
	}
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subscribers := snapshotSubscribers(m.subscribers)
	m.mu.Unlock()

	for _, callback := range subscribers {
		callback(online)
	}
}

func snapshotSubscribers(subscribers map[int]func(bool)) []func(bool) {
	out := make([]func(bool), 0, len(subscribers))
	for _, callback := range subscribers {
		out = append(out, callback)
	}
	return out
}

// BindSessionRefresh refetches the session whenever the app regains focus
// or connectivity, so a sign-in performed elsewhere becomes visible. Either
// manager may be nil. The returned function removes both subscriptions.
func BindSessionRefresh(c *client.Client, focus *FocusManager, online *OnlineManager) func() {
	refresh := func(active bool) {
		if !active {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			if _, err := c.RefreshSession(ctx); err != nil {
				logging.Debug("Lifecycle", "Session refresh failed: %v", err)
			}
		}()
	}

	removers := make([]func(), 0, 2)
	if focus != nil {
		removers = append(removers, focus.Subscribe(refresh))
	}
	if online != nil {
		removers = append(removers, online.Subscribe(refresh))
	}

	return func() {
		for _, remove := range removers {
			remove()
		}
	}
}
