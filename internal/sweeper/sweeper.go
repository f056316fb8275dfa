// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package sweeper closes bridges that stayed idle past the inactivity
// threshold.
package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/bridge"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

type Sweeper struct {
	registry  *bridge.Registry
	emitter   core.EventEmitter
	threshold func() time.Duration
	interval  time.Duration
	release   core.BridgeHandler
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger

	running atomic.Bool
}

type Option func(*Sweeper)

// WithRelease lets the input side of an evicted bridge clean up.
func WithRelease(h core.BridgeHandler) Option {
	return func(s *Sweeper) { s.release = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New builds a sweeper. threshold is read on every run so a reloaded
// configuration applies to the next sweep.
func New(registry *bridge.Registry, emitter core.EventEmitter, threshold func() time.Duration, interval time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Sweeper{
		registry:  registry,
		emitter:   emitter,
		threshold: threshold,
		interval:  interval,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs Sweep on every tick until ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("bridge sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("bridge sweeper stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep evicts every bridge idle since now minus the threshold. It never
// runs concurrently with itself; an overlapping call returns ran=false.
func (s *Sweeper) Sweep(ctx context.Context) (evicted int, ran bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("bridge sweep skipped, previous run still active")
		return 0, false
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bridge sweep panic recovered", "panic", r)
		}
	}()

	threshold := s.now().Add(-s.threshold())
	for _, b := range s.registry.ListInactiveSince(threshold) {
		if s.close(ctx, b, threshold) {
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("inactive bridges closed", "count", evicted, "threshold", threshold)
	}
	return evicted, true
}

func (s *Sweeper) close(ctx context.Context, b *core.Bridge, threshold time.Time) (closed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("closing inactive bridge failed", "endpoint_id", b.EndpointID, "panic", r)
		}
	}()

	if _, ok := s.registry.RemoveIfInactiveSince(b.BridgeID, threshold); !ok {
		return false
	}
	closed = true
	s.emitter.Emit(core.NewReport(b.BridgeID, core.ReportInternalClosed, ""))
	if s.metrics != nil {
		s.metrics.BridgesEvicted.Inc()
	}
	if s.release != nil {
		s.release.AbortBridge(ctx, b)
	}
	return closed
}
