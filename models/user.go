// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// User is a field worker or supervisor account as known to the device.
// Credentials never reach the synchronization engine.
type User struct {
	Meta

	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Role     string `json:"role,omitempty"`
	District string `json:"district,omitempty"`

	Preferences *Preferences `json:"preferences,omitempty"`
}

// Preferences holds per-user device settings.
type Preferences struct {
	Language       string `json:"language,omitempty"`
	Theme          string `json:"theme,omitempty"`
	SyncOnCellular bool   `json:"syncOnCellular,omitempty"`
	PageSize       int    `json:"pageSize,omitempty"`
}

func (u *User) Kind() EntityKind { return KindUser }

func (u *User) IndexValues() map[string]string {
	idx := map[string]string{}
	if u.District != "" {
		idx["district"] = u.District
	}
	if u.Username != "" {
		idx["username"] = u.Username
	}
	return idx
}

// RewriteReference implements [Entity]. Users hold no foreign keys.
func (u *User) RewriteReference(int64, int64) bool { return false }

func (u *User) References() []int64 { return nil }

func (u *User) Clone() Entity {
	out := *u
	if u.Preferences != nil {
		p := *u.Preferences
		out.Preferences = &p
	}
	return &out
}
