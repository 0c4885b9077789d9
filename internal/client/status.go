// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-field-sync/models"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true)
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// renderStatus formats a one-line summary of the sync status.
func renderStatus(s models.SyncStatus) string {
	parts := make([]string, 0, 5)

	if s.IsOnline {
		parts = append(parts, onlineStyle.Render("online"))
	} else {
		parts = append(parts, offlineStyle.Render("offline"))
	}

	state := string(s.State)
	if s.State == models.StateError {
		state = errorStyle.Render(state)
	}
	parts = append(parts, labelStyle.Render("sync:")+" "+state)

	parts = append(parts, fmt.Sprintf("pending %d", s.PendingCount))
	if s.FailedCount > 0 {
		parts = append(parts, errorStyle.Render(fmt.Sprintf("failed %d", s.FailedCount)))
	}

	last := "never"
	if !s.LastSyncedAt.IsZero() {
		last = s.LastSyncedAt.Local().Format(time.DateTime)
	}
	parts = append(parts, helpStyle.Render("last sync "+last))

	line := strings.Join(parts, " | ")
	if s.LastError != "" {
		line += "\n" + errorStyle.Render("error:") + " " + s.LastError
	}
	return line
}

// renderFailure formats an operation the server refused or that ran out of
// retries.
func renderFailure(ev models.ChangeEvent) string {
	return errorStyle.Render("not synced:") + fmt.Sprintf(" %s %d: %s", ev.Kind, ev.EntityID, ev.Err)
}
