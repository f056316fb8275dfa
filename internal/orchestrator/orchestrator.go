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

// Package orchestrator runs the dynamic call pipeline of a bridge and owns
// the decision to report and tear down a failed bridge.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/bridge"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	msgTargetInvalid   = "Request target is invalid"
	msgEndpointMissing = "Endpoint identifier is missing"
	msgEndpointInvalid = "Endpoint identifier is invalid"
	msgPayloadMissing  = "Payload is missing"
	msgResultMissing   = "Result is missing"
)

type Orchestrator struct {
	registry   *bridge.Registry
	translator core.Translator
	invoker    core.Invoker
	emitter    core.EventEmitter
	metrics    *metrics.Metrics
	traffic    *logging.TrafficLogger
	release    core.BridgeHandler
	logger     *slog.Logger

	// teardown holds bridge ids whose failure is being reported so that
	// concurrent failures on one bridge report once.
	teardown sync.Map
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTrafficLogger(t *logging.TrafficLogger) Option {
	return func(o *Orchestrator) { o.traffic = t }
}

// WithRelease lets the input side of a torn down bridge clean up.
func WithRelease(h core.BridgeHandler) Option {
	return func(o *Orchestrator) { o.release = h }
}

func New(registry *bridge.Registry, translator core.Translator, invoker core.Invoker, emitter core.EventEmitter, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   registry,
		translator: translator,
		invoker:    invoker,
		emitter:    emitter,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute performs one dynamic call against the bridge behind endpointID.
// origin identifies the caller in logs.
func (o *Orchestrator) Execute(ctx context.Context, endpointID string, payload []byte, contentType string, origin string) (*core.InvocationResult, error) {
	start := time.Now()

	id, err := normalizeEndpointID(endpointID)
	if err != nil {
		return nil, err
	}

	b, ok := o.registry.ByEndpoint(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgTargetInvalid)
	}

	res, err := o.guardedRun(ctx, b, payload, strings.TrimSpace(contentType))
	if err != nil {
		o.fail(b, err)
	}
	o.observe(endpointID, b, origin, len(payload), res, err, time.Since(start))
	return res, err
}

// guardedRun turns a panic in any call step into an internal error so the
// bridge is reported and torn down like any other internal failure.
func (o *Orchestrator) guardedRun(ctx context.Context, b *core.Bridge, payload []byte, contentType string) (res *core.InvocationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("bridge call panic recovered", "endpoint_id", b.EndpointID, "panic", r)
			res, err = nil, fmt.Errorf("%w: Unexpected failure: %v", core.ErrInternal, r)
		}
	}()
	return o.run(ctx, b, payload, contentType)
}

func (o *Orchestrator) run(ctx context.Context, b *core.Bridge, payload []byte, contentType string) (*core.InvocationResult, error) {
	if b.InputTranslator != nil && len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgPayloadMissing)
	}

	o.emitter.Emit(core.NewReport(b.BridgeID, core.ReportUsed, ""))

	input, inputType := payload, contentType
	if b.InputTranslator != nil {
		out, mimeType, err := o.translator.Translate(ctx, b.BridgeID, b.InputTranslator, payload, b.Settings)
		if err != nil {
			return nil, err
		}
		input = out
		if mimeType != "" {
			inputType = mimeType
		}
	}

	if !o.registry.Contains(b.BridgeID) {
		return nil, fmt.Errorf("%w: %s", core.ErrAborted, core.MsgBridgeAborted)
	}

	res, err := o.invoker.Invoke(ctx, b, input, inputType)
	if err != nil {
		return nil, err
	}

	if b.ResultTranslator != nil && !res.HasPayload() {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgResultMissing)
	}
	if b.ResultTranslator == nil || !res.HasPayload() {
		return res, nil
	}

	if !o.registry.Contains(b.BridgeID) {
		return nil, fmt.Errorf("%w: %s", core.ErrAborted, core.MsgBridgeAborted)
	}
	out, _, err := o.translator.Translate(ctx, b.BridgeID, b.ResultTranslator, res.Payload, b.Settings)
	if err != nil {
		return nil, err
	}
	return &core.InvocationResult{Status: res.Status, Payload: out}, nil
}

// fail reports and removes the bridge for external and internal errors.
// Aborted calls and caller mistakes leave the bridge alone.
func (o *Orchestrator) fail(b *core.Bridge, err error) {
	if errors.Is(err, core.ErrAborted) || errors.Is(err, core.ErrInvalidInput) ||
		errors.Is(err, core.ErrAuth) || errors.Is(err, core.ErrForbidden) {
		return
	}

	state := core.ReportInternalError
	if errors.Is(err, core.ErrExternal) {
		state = core.ReportExternalError
	}

	if _, busy := o.teardown.LoadOrStore(b.BridgeID, struct{}{}); busy {
		return
	}
	defer o.teardown.Delete(b.BridgeID)

	// removed by a management abort or a parallel failure already
	if cur, ok := o.registry.ByBridgeID(b.BridgeID); !ok || cur != b {
		return
	}

	o.emitter.Emit(core.NewReport(b.BridgeID, state, core.Message(err)))
	o.registry.Remove(b.BridgeID)
	if o.release != nil {
		o.release.AbortBridge(context.Background(), b)
	}
	o.logger.Warn("bridge closed after failed call",
		"endpoint_id", b.EndpointID,
		"state", state,
		"error", err,
	)
}

func (o *Orchestrator) observe(endpointID string, b *core.Bridge, origin string, inSize int, res *core.InvocationResult, err error, elapsed time.Duration) {
	status := core.StatusOf(err)
	outSize := 0
	if res != nil {
		status = res.Status
		outSize = len(res.Payload)
	}
	if o.traffic != nil {
		o.traffic.Log(logging.Call{
			EndpointID: endpointID,
			Bridge:     b,
			Origin:     origin,
			InputSize:  inSize,
			OutputSize: outSize,
			Status:     status,
			Elapsed:    elapsed,
		})
	}
	if o.metrics != nil {
		o.metrics.ObserveRequest(
			b.InputInterface.Transport().String(),
			b.TargetInterface.Transport().String(),
			outcome(err),
			elapsed,
		)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, core.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, core.ErrAborted):
		return metrics.OutcomeAborted
	case errors.Is(err, core.ErrExternal):
		return metrics.OutcomeExt
	default:
		return metrics.OutcomeInt
	}
}

func normalizeEndpointID(endpointID string) (uuid.UUID, error) {
	s := strings.TrimSpace(endpointID)
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgEndpointMissing)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgEndpointInvalid)
	}
	return id, nil
}
