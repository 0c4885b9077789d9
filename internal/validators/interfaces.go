// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks records on the device before they are written
// locally.
//
// Only rules that do not depend on server state live here: closed sets of
// values and required references. Everything else is left to the remote
// service, which answers with a validation error.
package validators

import "context"

// Validator validates a value, optionally restricted to the named fields.
type Validator interface {
	Validate(ctx context.Context, obj any, fields ...string) error
}
