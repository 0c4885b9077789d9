// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// Tier is the follow-up intensity assigned to a child after a screening.
type Tier struct {
	Meta

	ChildID     int64     `json:"childId"`
	ScreeningID int64     `json:"screeningId,omitempty"`
	Level       int       `json:"level"`
	AssignedAt  time.Time `json:"assignedAt"`
	AssignedBy  int64     `json:"assignedBy,omitempty"`
}

func (t *Tier) Kind() EntityKind { return KindTier }

func (t *Tier) IndexValues() map[string]string {
	idx := map[string]string{}
	putIndex(idx, "childId", t.ChildID)
	putIndex(idx, "level", int64(t.Level))
	return idx
}

func (t *Tier) RewriteReference(from, to int64) bool {
	a := rewriteID(&t.ChildID, from, to)
	b := rewriteID(&t.ScreeningID, from, to)
	return a || b
}

func (t *Tier) References() []int64 {
	return []int64{t.ChildID, t.ScreeningID}
}

func (t *Tier) Clone() Entity {
	out := *t
	return &out
}
