// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"net/http"
	"strings"

	"github.com/MKhiriev/go-field-sync/models"
	"github.com/go-resty/resty/v2"
)

// mapHTTPError converts a non-2xx response into a typed error. kind is used
// to decode the server copy of a 409 body.
func mapHTTPError(op string, kind models.EntityKind, resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))

	switch resp.StatusCode() {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Op: op, Status: resp.StatusCode(), Body: body}
	case http.StatusConflict:
		conflict := &ConflictError{Op: op, Body: body}
		if server, err := models.DecodeEntity(kind, resp.Body()); err == nil && server.GetID() > 0 {
			conflict.Server = server
		}
		return conflict
	default:
		if body == "" {
			body = http.StatusText(resp.StatusCode())
		}
		return &NetworkError{Op: op, Status: resp.StatusCode(), Body: body}
	}
}
