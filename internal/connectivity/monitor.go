// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package connectivity reports whether the remote service is reachable.
//
// [Manual] holds the current state and fans transitions out to subscribers.
// The host application drives it directly through SetOnline, or a [Prober]
// drives it by polling the health endpoint of the server.
package connectivity

import (
	"sync"
	"time"
)

// Transition is emitted when the online state changes.
type Transition struct {
	Online bool
	At     time.Time
}

// Monitor is the connectivity signal consumed by the sync engine.
type Monitor interface {
	// Online reports the current state.
	Online() bool
	// Subscribe returns a channel of transitions and a function that
	// unsubscribes and closes the channel. A slow subscriber only loses
	// intermediate transitions; the latest one is always delivered.
	Subscribe() (<-chan Transition, func())
}

// Manual is a [Monitor] whose state is set by the caller.
type Manual struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan Transition
	nextID int
	now    func() time.Time
}

func NewManual(online bool) *Manual {
	return &Manual{
		online: online,
		subs:   make(map[int]chan Transition),
		now:    time.Now,
	}
}

func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.online
}

// SetOnline records the state and notifies subscribers if it changed.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.online == online {
		return
	}
	m.online = online

	tr := Transition{Online: online, At: m.now()}
	for _, ch := range m.subs {
		deliverLatest(ch, tr)
	}
}

func (m *Manual) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Transition, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			delete(m.subs, id)
			close(ch)
		})
	}
}

// deliverLatest replaces an undelivered transition with tr. Callers hold the
// monitor lock, so no other sender races on ch.
func deliverLatest(ch chan Transition, tr Transition) {
	select {
	case ch <- tr:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}
	ch <- tr
}
