// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"slices"
	"time"
)

// MDAT domain results recorded by a screening.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Screening is one developmental screening of a child. The four MDAT fields
// hold the result of the gross motor, fine motor, language and social
// domains.
type Screening struct {
	Meta

	ChildID    int64     `json:"childId"`
	ScreenedAt time.Time `json:"screenedAt"`

	MdatGM1 string `json:"mdatGM1,omitempty"`
	MdatFM1 string `json:"mdatFM1,omitempty"`
	MdatLF1 string `json:"mdatLF1,omitempty"`
	MdatSD1 string `json:"mdatSD1,omitempty"`

	// ReferralNeeded is derived on the device when the screening is saved.
	// The server may not echo it back, so merges keep a true local value.
	ReferralNeeded bool `json:"referralNeeded,omitempty"`

	CreatedBy int64 `json:"createdBy,omitempty"`

	Notes      []string    `json:"notes,omitempty"`
	Assessment *Assessment `json:"assessment,omitempty"`
}

// Assessment is the free-form evaluation attached to a screening.
type Assessment struct {
	AgeMonths int    `json:"ageMonths,omitempty"`
	Score     int    `json:"score,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Assessor  string `json:"assessor,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

func (s *Screening) Kind() EntityKind { return KindScreening }

func (s *Screening) IndexValues() map[string]string {
	idx := map[string]string{}
	putIndex(idx, "childId", s.ChildID)
	putIndex(idx, "createdBy", s.CreatedBy)
	if !s.ScreenedAt.IsZero() {
		idx["screenedOn"] = s.ScreenedAt.UTC().Format(time.DateOnly)
	}
	return idx
}

func (s *Screening) RewriteReference(from, to int64) bool {
	return rewriteID(&s.ChildID, from, to)
}

func (s *Screening) References() []int64 {
	return []int64{s.ChildID}
}

func (s *Screening) Clone() Entity {
	out := *s
	out.Notes = slices.Clone(s.Notes)
	if s.Assessment != nil {
		a := *s.Assessment
		out.Assessment = &a
	}
	return &out
}

// DeriveReferral sets ReferralNeeded when any MDAT domain failed. A flag
// that is already set is never cleared here.
func (s *Screening) DeriveReferral() {
	for _, r := range []string{s.MdatGM1, s.MdatFM1, s.MdatLF1, s.MdatSD1} {
		if r == ResultFail {
			s.ReferralNeeded = true
			return
		}
	}
}
