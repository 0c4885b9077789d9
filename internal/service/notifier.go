// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
)

// notifierBuffer is the per-subscriber backlog. Events beyond it are dropped
// for that subscriber; consumers treat every event as "views may be stale".
const notifierBuffer = 64

// Notifier fans change events out to subscribers without ever blocking the
// publisher.
type Notifier struct {
	mu     sync.Mutex
	subs   map[int]chan models.ChangeEvent
	nextID int
	now    func() time.Time
}

func NewNotifier(now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{subs: make(map[int]chan models.ChangeEvent), now: now}
}

func (n *Notifier) Subscribe() (<-chan models.ChangeEvent, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan models.ChangeEvent, notifierBuffer)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *Notifier) Publish(ev models.ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = n.now().UTC()
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
