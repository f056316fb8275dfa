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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/bridge"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, bridgeID uuid.UUID, desc *core.TranslatorDescriptor, input []byte, settings map[string]any) ([]byte, string, error) {
	args := m.Called(ctx, bridgeID, desc, input, settings)
	out, _ := args.Get(0).([]byte)
	return out, args.String(1), args.Error(2)
}

type mockInvoker struct {
	mock.Mock
}

func (m *mockInvoker) Invoke(ctx context.Context, b *core.Bridge, payload []byte, contentType string) (*core.InvocationResult, error) {
	args := m.Called(ctx, b, payload, contentType)
	res, _ := args.Get(0).(*core.InvocationResult)
	return res, args.Error(1)
}

type recordingEmitter struct {
	mu      sync.Mutex
	reports []core.Report
}

func (e *recordingEmitter) Emit(r core.Report) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, r)
}

func (e *recordingEmitter) states() []core.ReportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.ReportState, 0, len(e.reports))
	for _, r := range e.reports {
		out = append(out, r.State)
	}
	return out
}

func (e *recordingEmitter) count(state core.ReportState) int {
	n := 0
	for _, s := range e.states() {
		if s == state {
			n++
		}
	}
	return n
}

type releaseRecorder struct {
	mu       sync.Mutex
	released []uuid.UUID
}

func (r *releaseRecorder) InitializeBridge(context.Context, *core.Bridge) error { return nil }

func (r *releaseRecorder) AbortBridge(_ context.Context, b *core.Bridge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, b.BridgeID)
}

type fixture struct {
	registry   *bridge.Registry
	translator *mockTranslator
	invoker    *mockInvoker
	emitter    *recordingEmitter
	metrics    *metrics.Metrics
	release    *releaseRecorder
	orch       *Orchestrator
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		registry:   bridge.NewRegistry(),
		translator: &mockTranslator{},
		invoker:    &mockInvoker{},
		emitter:    &recordingEmitter{},
		metrics:    metrics.New(prometheus.NewRegistry()),
		release:    &releaseRecorder{},
	}
	f.orch = New(f.registry, f.translator, f.invoker, f.emitter, logger,
		WithMetrics(f.metrics),
		WithRelease(f.release),
		WithTrafficLogger(logging.NewTrafficLogger(logger)),
	)
	return f
}

func (f *fixture) addBridge(mutate func(b *core.Bridge)) *core.Bridge {
	b := &core.Bridge{
		EndpointID:      uuid.New(),
		BridgeID:        uuid.New(),
		InputInterface:  core.TemplateGenericHTTP,
		TargetInterface: core.TemplateGenericMQTT,
		Operation:       "query",
	}
	if mutate != nil {
		mutate(b)
	}
	f.registry.Add(b)
	return b
}

var translator = &core.TranslatorDescriptor{FromModelID: "a", ToModelID: "b"}

func TestExecutePassThrough(t *testing.T) {
	f := newFixture()
	b := f.addBridge(nil)
	f.invoker.On("Invoke", mock.Anything, b, []byte("P"), "text/plain").
		Return(&core.InvocationResult{Status: 200, Payload: []byte("R")}, nil)

	res, err := f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), " text/plain ", "consumer")

	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, "R", string(res.Payload))
	assert.Equal(t, []core.ReportState{core.ReportUsed}, f.emitter.states())
	assert.True(t, f.registry.Contains(b.BridgeID))
	f.translator.AssertNotCalled(t, "Translate")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BridgeRequests.WithLabelValues("http", "mqtt", metrics.OutcomeSuccess)))
}

func TestExecuteInputTranslation(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.InputTranslator = translator })
	f.translator.On("Translate", mock.Anything, b.BridgeID, translator, []byte("P"), b.Settings).
		Return([]byte("P'"), "application/xml", nil)
	f.invoker.On("Invoke", mock.Anything, b, []byte("P'"), "application/xml").
		Return(&core.InvocationResult{Status: 200}, nil)

	res, err := f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "application/json", "consumer")

	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.False(t, res.HasPayload())
	f.translator.AssertExpectations(t)
	f.invoker.AssertExpectations(t)
}

func TestExecuteResultTranslation(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.ResultTranslator = translator })
	f.invoker.On("Invoke", mock.Anything, b, []byte(nil), "").
		Return(&core.InvocationResult{Status: 201, Payload: []byte("R")}, nil)
	f.translator.On("Translate", mock.Anything, b.BridgeID, translator, []byte("R"), b.Settings).
		Return([]byte("R'"), "application/json", nil)

	res, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")

	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "R'", string(res.Payload))
}

func TestExecuteAbortedDuringTranslation(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.InputTranslator = translator })
	f.translator.On("Translate", mock.Anything, b.BridgeID, translator, []byte("P"), b.Settings).
		Run(func(mock.Arguments) { f.registry.Remove(b.BridgeID) }).
		Return(nil, "", fmt.Errorf("%w: %s", core.ErrAborted, core.MsgBridgeAborted))

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "", "consumer")

	assert.ErrorIs(t, err, core.ErrAborted)
	assert.Equal(t, []core.ReportState{core.ReportUsed}, f.emitter.states())
	assert.False(t, f.registry.Contains(b.BridgeID))
	f.invoker.AssertNotCalled(t, "Invoke")
}

func TestExecuteAbortedBeforeInvocation(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.InputTranslator = translator })
	f.translator.On("Translate", mock.Anything, b.BridgeID, translator, []byte("P"), b.Settings).
		Run(func(mock.Arguments) { f.registry.Remove(b.BridgeID) }).
		Return([]byte("P'"), "", nil)

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "", "consumer")

	assert.ErrorIs(t, err, core.ErrAborted)
	assert.Equal(t, 0, f.emitter.count(core.ReportExternalError))
	f.invoker.AssertNotCalled(t, "Invoke")
}

func TestExecuteExternalErrorTearsDownBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(nil)
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: Provider did not respond in time", core.ErrExternal))

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "", "consumer")

	assert.ErrorIs(t, err, core.ErrExternal)
	assert.Equal(t, []core.ReportState{core.ReportUsed, core.ReportExternalError}, f.emitter.states())
	assert.Equal(t, "Provider did not respond in time", f.emitter.reports[1].Message)
	assert.False(t, f.registry.Contains(b.BridgeID))
	assert.Equal(t, []uuid.UUID{b.BridgeID}, f.release.released)

	_, err = f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "", "consumer")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgTargetInvalid, core.Message(err))
}

func TestExecuteInternalErrorTearsDownBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(nil)
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Return(nil, errors.New("nil map"))

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")

	assert.Error(t, err)
	assert.Equal(t, 500, core.StatusOf(err))
	assert.Equal(t, 1, f.emitter.count(core.ReportInternalError))
	assert.False(t, f.registry.Contains(b.BridgeID))
}

func TestExecutePanicTearsDownBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(nil)
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			var seen map[string]int
			seen["x"]++
		}).
		Return(nil, nil)

	var res *core.InvocationResult
	var err error
	require.NotPanics(t, func() {
		res, err = f.orch.Execute(context.Background(), b.EndpointID.String(), []byte("P"), "", "consumer")
	})

	assert.Nil(t, res)
	require.ErrorIs(t, err, core.ErrInternal)
	assert.Contains(t, core.Message(err), "assignment to entry in nil map")
	assert.Equal(t, []core.ReportState{core.ReportUsed, core.ReportInternalError}, f.emitter.states())
	assert.False(t, f.registry.Contains(b.BridgeID))
	assert.Equal(t, []uuid.UUID{b.BridgeID}, f.release.released)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BridgeRequests.WithLabelValues("http", "mqtt", metrics.OutcomeInt)))
}

func TestExecuteInvalidInputKeepsBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.InputTranslator = translator })

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")

	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgPayloadMissing, core.Message(err))
	assert.Empty(t, f.emitter.states())
	assert.True(t, f.registry.Contains(b.BridgeID))
}

func TestExecuteMissingResultKeepsBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(func(b *core.Bridge) { b.ResultTranslator = translator })
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Return(&core.InvocationResult{Status: 204}, nil)

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")

	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgResultMissing, core.Message(err))
	assert.True(t, f.registry.Contains(b.BridgeID))
}

func TestExecuteRejectsBadEndpoint(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Execute(context.Background(), "  ", nil, "", "consumer")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgEndpointMissing, core.Message(err))

	_, err = f.orch.Execute(context.Background(), "not-a-uuid", nil, "", "consumer")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgEndpointInvalid, core.Message(err))

	_, err = f.orch.Execute(context.Background(), uuid.NewString(), nil, "", "consumer")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, msgTargetInvalid, core.Message(err))
}

func TestExecuteConcurrentFailuresReportOnce(t *testing.T) {
	const callers = 16
	f := newFixture()
	b := f.addBridge(nil)

	var entered sync.WaitGroup
	entered.Add(callers)
	release := make(chan struct{})
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			entered.Done()
			<-release
		}).
		Return(nil, fmt.Errorf("%w: provider failed", core.ErrExternal))

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")
			assert.ErrorIs(t, err, core.ErrExternal)
		}()
	}
	entered.Wait()
	close(release)
	wg.Wait()

	assert.Equal(t, callers, f.emitter.count(core.ReportUsed))
	assert.Equal(t, 1, f.emitter.count(core.ReportExternalError))
	assert.False(t, f.registry.Contains(b.BridgeID))
	assert.Len(t, f.release.released, 1)
}

func TestExecuteDoesNotReportFailureOfReplacedBridge(t *testing.T) {
	f := newFixture()
	b := f.addBridge(nil)
	f.invoker.On("Invoke", mock.Anything, b, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { f.registry.Remove(b.BridgeID) }).
		Return(nil, fmt.Errorf("%w: provider failed", core.ErrExternal))

	_, err := f.orch.Execute(context.Background(), b.EndpointID.String(), nil, "", "consumer")

	assert.ErrorIs(t, err, core.ErrExternal)
	assert.Equal(t, 0, f.emitter.count(core.ReportExternalError))
}
