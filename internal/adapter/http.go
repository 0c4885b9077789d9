// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
	"github.com/MKhiriev/go-field-sync/models"
	"github.com/go-resty/resty/v2"
)

type httpRemoteAPI struct {
	client *utils.HTTPClient

	token    string
	deviceID string

	logger *logger.Logger
}

// NewHTTPRemoteAPI constructs the REST implementation of [RemoteAPI]. Every
// request is bounded by adapterCfg.RequestTimeout and carries the bearer
// token from appCfg.
func NewHTTPRemoteAPI(adapterCfg config.ClientAdapter, appCfg config.ClientApp, logger *logger.Logger) (RemoteAPI, error) {
	baseURL, err := utils.NormalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout)
	if appCfg.Version != "" {
		client.SetHeader("User-Agent", "go-field-sync/"+appCfg.Version)
	}

	return &httpRemoteAPI{
		client:   client,
		token:    strings.TrimSpace(appCfg.AuthToken),
		deviceID: appCfg.DeviceID,
		logger:   logger,
	}, nil
}

func (h *httpRemoteAPI) List(ctx context.Context, kind models.EntityKind) ([]models.Entity, error) {
	op := "list " + kind.Collection()
	if !kind.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnknownEntityKind)
	}

	resp, err := h.authedRequest(ctx).Get(collectionPath(kind))
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	if err = mapHTTPError(op, kind, resp); err != nil {
		return nil, err
	}

	entities, err := models.DecodeEntities(kind, resp.Body())
	if err != nil {
		return nil, &NetworkError{Op: op, Status: resp.StatusCode(), Err: err}
	}
	return entities, nil
}

func (h *httpRemoteAPI) Create(ctx context.Context, e models.Entity) (models.Entity, error) {
	op := "create " + e.Kind().Collection()

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e).
		Post(collectionPath(e.Kind()))
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	if err = mapHTTPError(op, e.Kind(), resp); err != nil {
		return nil, err
	}

	created, err := models.DecodeEntity(e.Kind(), resp.Body())
	if err != nil {
		return nil, &NetworkError{Op: op, Status: resp.StatusCode(), Err: err}
	}
	if created.GetID() <= 0 {
		return nil, &NetworkError{Op: op, Status: resp.StatusCode(), Err: errors.New("server did not assign an id")}
	}
	return created, nil
}

func (h *httpRemoteAPI) Update(ctx context.Context, e models.Entity) (models.Entity, error) {
	op := "update " + e.Kind().Collection()

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e).
		Put(entityPath(e.Kind(), e.GetID()))
	if err != nil {
		return nil, h.transportError(ctx, op, err)
	}
	if err = mapHTTPError(op, e.Kind(), resp); err != nil {
		return nil, err
	}

	if len(resp.Body()) == 0 || resp.StatusCode() == http.StatusNoContent {
		return e.Clone(), nil
	}

	updated, err := models.DecodeEntity(e.Kind(), resp.Body())
	if err != nil {
		return nil, &NetworkError{Op: op, Status: resp.StatusCode(), Err: err}
	}
	return updated, nil
}

func (h *httpRemoteAPI) Delete(ctx context.Context, kind models.EntityKind, id int64) error {
	op := "delete " + kind.Collection()

	resp, err := h.authedRequest(ctx).Delete(entityPath(kind, id))
	if err != nil {
		return h.transportError(ctx, op, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}

	return mapHTTPError(op, kind, resp)
}

// UserID returns the subject of the configured bearer token. The token is
// not verified on the device.
func (h *httpRemoteAPI) UserID() (int64, error) {
	if h.token == "" {
		return 0, ErrNoToken
	}
	return utils.ParseUserIDFromJWT(h.token)
}

func (h *httpRemoteAPI) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetAuthToken(h.token)
	}
	if h.deviceID != "" {
		req.SetHeader("X-Device-ID", h.deviceID)
	}
	return req
}

func (h *httpRemoteAPI) transportError(ctx context.Context, op string, err error) error {
	h.logger.Debug().
		Err(err).
		Str("func", "httpRemoteAPI.transportError").
		Str("op", op).
		Msg("remote request failed")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &NetworkError{Op: op, Err: ctxErr}
	}
	return &NetworkError{Op: op, Err: err}
}

func collectionPath(kind models.EntityKind) string {
	return "/api/" + kind.Collection()
}

func entityPath(kind models.EntityKind, id int64) string {
	return collectionPath(kind) + "/" + strconv.FormatInt(id, 10)
}
