// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"slices"
	"time"
)

// Referral statuses.
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
	ReferralCancelled = "cancelled"
)

// Referral sends a child to a health facility after a failed screening.
type Referral struct {
	Meta

	ChildID     int64     `json:"childId"`
	ScreeningID int64     `json:"screeningId,omitempty"`
	Facility    string    `json:"facility,omitempty"`
	Status      string    `json:"status,omitempty"`
	ReferredAt  time.Time `json:"referredAt"`
	CreatedBy   int64     `json:"createdBy,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

func (r *Referral) Kind() EntityKind { return KindReferral }

func (r *Referral) IndexValues() map[string]string {
	idx := map[string]string{}
	putIndex(idx, "childId", r.ChildID)
	putIndex(idx, "screeningId", r.ScreeningID)
	if r.Status != "" {
		idx["status"] = r.Status
	}
	return idx
}

func (r *Referral) RewriteReference(from, to int64) bool {
	a := rewriteID(&r.ChildID, from, to)
	b := rewriteID(&r.ScreeningID, from, to)
	return a || b
}

func (r *Referral) References() []int64 {
	return []int64{r.ChildID, r.ScreeningID}
}

func (r *Referral) Clone() Entity {
	out := *r
	out.Notes = slices.Clone(r.Notes)
	return &out
}
