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

// Package report forwards bridge lifecycle reports to the configured sinks
// from a bounded queue drained by a single worker.
package report

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	OverflowDropOldest = "drop_oldest"
	OverflowBlock      = "block"
)

const deliveryTimeout = 10 * time.Second

type Reporter struct {
	queue    chan core.Report
	sinks    []core.EventSink
	overflow string
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}

	// stopping closes when shutdown begins. Blocked senders are tracked in
	// sending so the empty report is queued only after they settle.
	stopping chan struct{}
	sending  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type Option func(*Reporter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) { r.metrics = m }
}

func New(size int, overflow string, sinks []core.EventSink, logger *slog.Logger, opts ...Option) *Reporter {
	if size <= 0 {
		size = 1024
	}
	if overflow != OverflowBlock {
		overflow = OverflowDropOldest
	}
	r := &Reporter{
		queue:    make(chan core.Report, size),
		sinks:    sinks,
		overflow: overflow,
		logger:   logger,
		done:     make(chan struct{}),
		stopping: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Emit queues rep without waiting for delivery. With the drop_oldest
// policy a full queue loses its oldest report; with block the caller
// waits for room. The empty report stops the worker once it is reached.
func (r *Reporter) Emit(rep core.Report) {
	if rep.IsSentinel() {
		_ = r.shutdown(context.Background())
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.logger.Warn("report dropped, reporter is stopping", "state", rep.State)
		return
	}
	if r.overflow == OverflowDropOldest {
		r.enqueueDropOldest(rep)
		r.mu.Unlock()
		return
	}
	r.sending.Add(1)
	r.mu.Unlock()
	defer r.sending.Done()

	select {
	case r.queue <- rep:
	case <-r.stopping:
		r.logger.Warn("report dropped, reporter is stopping", "state", rep.State)
	case <-r.done:
		r.logger.Warn("report dropped, reporter is stopped", "state", rep.State)
	}
}

// enqueueDropOldest must be called with r.mu held.
func (r *Reporter) enqueueDropOldest(rep core.Report) {
	for {
		select {
		case r.queue <- rep:
			return
		default:
		}
		select {
		case old := <-r.queue:
			if r.metrics != nil {
				r.metrics.ReportsDropped.Inc()
			}
			r.logger.Warn("report queue full, oldest report dropped", "state", old.State)
		default:
		}
	}
}

// Run delivers queued reports until it takes the empty report. It does not
// watch a context so that a shutdown can drain what is already queued.
func (r *Reporter) Run() {
	defer close(r.done)
	r.logger.Info("reporter started", "sinks", len(r.sinks), "queue_size", cap(r.queue), "overflow", r.overflow)

	for rep := range r.queue {
		if rep.IsSentinel() {
			r.logger.Info("reporter stopped")
			return
		}
		r.deliver(rep)
	}
}

func (r *Reporter) deliver(rep core.Report) {
	for _, sink := range r.sinks {
		r.deliverTo(sink, rep)
	}
}

func (r *Reporter) deliverTo(sink core.EventSink, rep core.Report) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("report sink panic recovered", "sink", sink.Name(), "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	outcome := metrics.OutcomeSuccess
	if err := sink.Report(ctx, rep); err != nil {
		outcome = metrics.OutcomeFailed
		r.logger.Error("report delivery failed",
			"sink", sink.Name(),
			"state", rep.State,
			"error", err,
		)
	}
	if r.metrics != nil {
		r.metrics.Reports.WithLabelValues(string(rep.State), outcome).Inc()
	}
}

func (r *Reporter) shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.stopping)
	r.mu.Unlock()
	r.sending.Wait()

	select {
	case r.queue <- core.Report{}:
		return nil
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop queues the empty report and waits for the worker to drain up to it.
func (r *Reporter) Stop(ctx context.Context) error {
	if err := r.shutdown(ctx); err != nil {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
