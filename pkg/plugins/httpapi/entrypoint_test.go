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

package httpapi

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/management"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Execute(ctx context.Context, endpointID string, payload []byte, contentType, origin string) (*core.InvocationResult, error) {
	args := m.Called(ctx, endpointID, payload, contentType, origin)
	res, _ := args.Get(0).(*core.InvocationResult)
	return res, args.Error(1)
}

type mockManager struct{ mock.Mock }

func (m *mockManager) CheckTargets(req *management.CheckTargetsRequest) (*management.CheckTargetsResponse, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*management.CheckTargetsResponse)
	return res, args.Error(1)
}

func (m *mockManager) InitializeBridge(ctx context.Context, req *management.InitializeBridgeRequest) (*management.InterfaceDescriptor, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*management.InterfaceDescriptor)
	return res, args.Error(1)
}

func (m *mockManager) AbortBridge(ctx context.Context, bridgeID string) (bool, error) {
	args := m.Called(ctx, bridgeID)
	return args.Bool(0), args.Error(1)
}

// bridgeGuard accepts exactly one endpoint/bridge pair.
type bridgeGuard struct {
	endpointID string
	bridgeID   string
}

func (g bridgeGuard) AuthorizeHeader(endpointID, header string) error {
	if endpointID != g.endpointID {
		return fmt.Errorf("%w: Request target is invalid", core.ErrInvalidInput)
	}
	if header == "" {
		return fmt.Errorf("%w: No authorization header has been provided", core.ErrAuth)
	}
	if header != "Bearer "+g.bridgeID {
		return fmt.Errorf("%w: Requester has no permission to use this operation", core.ErrForbidden)
	}
	return nil
}

type managementGuard struct {
	calls atomic.Int32
	allow atomic.Bool
}

func (g *managementGuard) Authorize([]*x509.Certificate, string) error {
	g.calls.Add(1)
	if !g.allow.Load() {
		return fmt.Errorf("%w: Requester has no management permission", core.ErrForbidden)
	}
	return nil
}

type fixture struct {
	srv      *httptest.Server
	exec     *mockExecutor
	manager  *mockManager
	guard    *managementGuard
	endpoint string
	bridge   string
}

func newFixture(t *testing.T, feeds map[string]http.Handler) *fixture {
	t.Helper()
	f := &fixture{
		exec:     &mockExecutor{},
		manager:  &mockManager{},
		guard:    &managementGuard{},
		endpoint: uuid.NewString(),
		bridge:   uuid.NewString(),
	}
	f.guard.allow.Store(true)
	ep := New("http", config.ServerConfig{MaxBodyBytes: 64}, Deps{
		Executor:        f.exec,
		BridgeGuard:     bridgeGuard{endpointID: f.endpoint, bridgeID: f.bridge},
		ManagementGuard: f.guard,
		Manager:         f.manager,
		Feeds:           feeds,
	}, discard)
	f.srv = httptest.NewServer(ep.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) dynamic(t *testing.T, body, contentType, auth, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+DynamicBasePath+"/"+f.endpoint, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestDynamicCallReturnsTargetResult(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, f.endpoint, []byte(`{"t":21}`), "application/json", mock.Anything).
		Return(&core.InvocationResult{Status: http.StatusAccepted, Payload: []byte("<k>294</k>")}, nil)

	resp := f.dynamic(t, `{"t":21}`, "application/json", "Bearer "+f.bridge, "application/xml")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<k>294</k>", readAll(t, resp))
	f.exec.AssertExpectations(t)
}

func TestDynamicCallWithoutResultPayload(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, f.endpoint, mock.Anything, mock.Anything, mock.Anything).
		Return(&core.InvocationResult{Status: http.StatusOK}, nil)

	resp := f.dynamic(t, "21", "text/plain", "Bearer "+f.bridge, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readAll(t, resp))
}

func TestDynamicCallDetachedFromClient(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Done() == nil }),
		f.endpoint, mock.Anything, mock.Anything, mock.Anything).
		Return(&core.InvocationResult{Status: http.StatusOK}, nil)

	resp := f.dynamic(t, "x", "text/plain", "Bearer "+f.bridge, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.exec.AssertExpectations(t)
}

func TestDynamicCallErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, mock.Anything, []byte("boom"), mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: Provider did not respond in time", core.ErrExternal))

	tests := []struct {
		name   string
		body   string
		auth   string
		status int
		text   string
	}{
		{"missing credential", "x", "", http.StatusUnauthorized, "401 No authorization header has been provided"},
		{"wrong bridge", "x", "Bearer " + uuid.NewString(), http.StatusForbidden, "403 Requester has no permission to use this operation"},
		{"payload too large", strings.Repeat("x", 65), "Bearer " + f.bridge, http.StatusBadRequest, "400 Payload exceeds 64 bytes"},
		{"external failure", "boom", "Bearer " + f.bridge, http.StatusServiceUnavailable, "503 Provider did not respond in time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.dynamic(t, tt.body, "text/plain", tt.auth, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, core.ContentTypeText, resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.text, readAll(t, resp))
		})
	}
}

func TestDynamicCallUnknownEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Post(f.srv.URL+DynamicBasePath+"/"+uuid.NewString(), "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "400 Request target is invalid", readAll(t, resp))
}

func mgmt(t *testing.T, f *fixture, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+ManagementBasePath+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCheckTargets(t *testing.T) {
	f := newFixture(t, nil)
	want := &management.CheckTargetsResponse{Targets: []management.Target{{InstanceID: "p1"}}}
	f.manager.On("CheckTargets", mock.MatchedBy(func(r *management.CheckTargetsRequest) bool {
		return r.TargetOperation == "op"
	})).Return(want, nil)

	resp := mgmt(t, f, http.MethodPost, "/check-targets", `{"targetOperation":"op","targets":[]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got management.CheckTargetsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "p1", got.Targets[0].InstanceID)
}

func TestInitializeBridge(t *testing.T) {
	f := newFixture(t, nil)
	f.manager.On("InitializeBridge", mock.Anything, mock.MatchedBy(func(r *management.InitializeBridgeRequest) bool {
		return r.Operation == "op"
	})).Return(&management.InterfaceDescriptor{TemplateName: "generic_http", Protocol: "http", Policy: management.PolicyBridgeToken}, nil)

	resp := mgmt(t, f, http.MethodPost, "/initialize-bridge", `{"operation":"op"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got management.InterfaceDescriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, management.PolicyBridgeToken, got.Policy)
}

func TestManagementValidationError(t *testing.T) {
	f := newFixture(t, nil)
	resp := mgmt(t, f, http.MethodPost, "/initialize-bridge", ``)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var got ErrorMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Request is missing", got.ErrorMessage)
	assert.Equal(t, "INVALID_PARAMETER", got.ExceptionType)
	assert.Equal(t, http.StatusBadRequest, got.ErrorCode)
	f.manager.AssertNotCalled(t, "InitializeBridge", mock.Anything, mock.Anything)
}

func TestAbortBridge(t *testing.T) {
	f := newFixture(t, nil)
	active, gone := uuid.NewString(), uuid.NewString()
	f.manager.On("AbortBridge", mock.Anything, active).Return(true, nil)
	f.manager.On("AbortBridge", mock.Anything, gone).Return(false, nil)
	f.manager.On("AbortBridge", mock.Anything, "bad").
		Return(false, fmt.Errorf("%w: Bridge identifier is invalid", core.ErrInvalidInput))

	assert.Equal(t, http.StatusOK, mgmt(t, f, http.MethodDelete, "/abort-bridge/"+active, "").StatusCode)
	assert.Equal(t, http.StatusNoContent, mgmt(t, f, http.MethodDelete, "/abort-bridge/"+gone, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, mgmt(t, f, http.MethodDelete, "/abort-bridge/bad", "").StatusCode)
}

func TestManagementRequiresPermission(t *testing.T) {
	var feedHits atomic.Int32
	feed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feedHits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	f := newFixture(t, map[string]http.Handler{"reports": feed})
	f.guard.allow.Store(false)

	resp := mgmt(t, f, http.MethodDelete, "/abort-bridge/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var got ErrorMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "FORBIDDEN", got.ExceptionType)

	assert.Equal(t, http.StatusForbidden, mgmt(t, f, http.MethodGet, "/feed/reports", "").StatusCode)
	assert.Zero(t, feedHits.Load())

	f.guard.allow.Store(true)
	assert.Equal(t, http.StatusOK, mgmt(t, f, http.MethodGet, "/feed/reports", "").StatusCode)
	assert.EqualValues(t, 1, feedHits.Load())
	f.manager.AssertNotCalled(t, "AbortBridge", mock.Anything, mock.Anything)
}

func TestDynamicRouteSkipsManagementGuard(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.On("Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&core.InvocationResult{Status: http.StatusOK}, nil)
	f.dynamic(t, "x", "text/plain", "Bearer "+f.bridge, "")
	assert.Zero(t, f.guard.calls.Load())
}
