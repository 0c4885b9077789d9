// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the device runtime of the sync engine.
//
// It wires the local database, the remote API adapter, the connectivity
// prober and the engine services into a single process lifecycle, and
// prints a status line whenever the sync state changes.
package client
