// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MKhiriev/go-field-sync/internal/config"
	"github.com/MKhiriev/go-field-sync/internal/logger"
	"github.com/MKhiriev/go-field-sync/internal/utils"
)

// Prober polls the health endpoint of the server and feeds the result into a
// [Manual] monitor. It implements workers.Worker.
type Prober struct {
	client   *utils.HTTPClient
	path     string
	interval time.Duration
	target   *Manual

	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewProber(adapterCfg config.ClientAdapter, cfg config.ClientConnectivity, target *Manual, log *logger.Logger) (*Prober, error) {
	baseURL, err := utils.NormalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid prober address: %w", err)
	}

	return &Prober{
		client:   utils.NewHTTPClient(baseURL, adapterCfg.RequestTimeout),
		path:     cfg.ProbePath,
		interval: cfg.ProbeInterval,
		target:   target,
		logger:   log,
	}, nil
}

// Probe performs one health check and updates the target monitor. Any
// response below 500 counts as reachable. A probe cut short by ctx leaves
// the state unchanged.
func (p *Prober) Probe(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Get(p.path)
	online := err == nil && resp.StatusCode() < http.StatusInternalServerError
	if ctx.Err() != nil {
		return p.target.Online()
	}

	if !online {
		p.logger.Debug().Err(err).Str("func", "Prober.Probe").Msg("server unreachable")
	}
	p.target.SetOnline(online)
	return online
}

// Start probes once and then at every interval until Stop is called or ctx
// is cancelled.
func (p *Prober) Start(ctx context.Context) error {
	p.Stop()

	p.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		p.Probe(jobCtx)

		t := time.NewTicker(p.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				p.Probe(jobCtx)
			}
		}
	}()

	return nil
}

func (p *Prober) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
