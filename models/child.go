// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"slices"
	"time"
)

// Child is a registered child under follow-up by field workers.
type Child struct {
	Meta

	FullName      string    `json:"fullName"`
	DateOfBirth   time.Time `json:"dateOfBirth"`
	Sex           string    `json:"sex,omitempty"`
	District      string    `json:"district,omitempty"`
	Village       string    `json:"village,omitempty"`
	GuardianName  string    `json:"guardianName,omitempty"`
	GuardianPhone string    `json:"guardianPhone,omitempty"`

	// CreatedBy is the identifier of the user who registered the child.
	CreatedBy int64 `json:"createdBy,omitempty"`

	// ScreeningIDs references every screening recorded for the child.
	ScreeningIDs []int64 `json:"screeningIds,omitempty"`
}

func (c *Child) Kind() EntityKind { return KindChild }

func (c *Child) IndexValues() map[string]string {
	idx := map[string]string{}
	if c.District != "" {
		idx["district"] = c.District
	}
	if c.Village != "" {
		idx["village"] = c.Village
	}
	putIndex(idx, "createdBy", c.CreatedBy)
	return idx
}

func (c *Child) RewriteReference(from, to int64) bool {
	changed := false
	for i, id := range c.ScreeningIDs {
		if id == from {
			c.ScreeningIDs[i] = to
			changed = true
		}
	}
	return changed
}

func (c *Child) References() []int64 {
	return slices.Clone(c.ScreeningIDs)
}

func (c *Child) Clone() Entity {
	out := *c
	out.ScreeningIDs = slices.Clone(c.ScreeningIDs)
	return &out
}
