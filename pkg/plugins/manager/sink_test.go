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

package manager

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func managerConfig(t *testing.T, srv *httptest.Server) config.ManagerConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.ManagerConfig{Address: host, Port: p, Path: "/report", Timeout: time.Second}
}

func TestReportPostsJSON(t *testing.T) {
	got := make(chan core.Report, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/translation/manager/report", r.URL.Path)
		assert.Equal(t, core.ContentTypeJSON, r.Header.Get("Content-Type"))
		var rep core.Report
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&rep))
		got <- rep
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	sink := FromConfig(config.ManagerConfig{
		Address:  host,
		Port:     p,
		BasePath: "/translation/manager/",
		Path:     "report",
		Timeout:  time.Second,
	}, false, discard)
	require.NotNil(t, sink)
	require.NoError(t, sink.Connect(context.Background()))
	defer sink.Disconnect(context.Background())

	id := uuid.New()
	require.NoError(t, sink.Report(context.Background(), core.NewReport(id, core.ReportUsed, "")))

	rep := <-got
	assert.Equal(t, id.String(), rep.BridgeID)
	assert.Equal(t, core.ReportUsed, rep.State)
	_, err = time.Parse(core.ReportTimeLayout, rep.Timestamp)
	assert.NoError(t, err)
}

func TestReportFailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := New("manager", srv.URL+"/report", "put", time.Second, discard)
	err := sink.Report(context.Background(), core.NewReport(uuid.New(), core.ReportExternalError, "boom"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExternal)
	assert.Equal(t, http.MethodPut, sink.method)
}

func TestFromConfigWithoutAddress(t *testing.T) {
	assert.Nil(t, FromConfig(config.ManagerConfig{Port: 8443}, true, discard))
}

func TestReportOverTLS(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// Without the server's CA the handshake fails.
	plain := FromConfig(managerConfig(t, srv), true, discard)
	require.NotNil(t, plain)
	err := plain.Report(context.Background(), core.NewReport(uuid.New(), core.ReportUsed, ""))
	assert.ErrorIs(t, err, core.ErrExternal)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	sink := FromConfig(managerConfig(t, srv), true, discard, WithTLS(&tls.Config{RootCAs: pool}))
	require.NotNil(t, sink)
	defer sink.Disconnect(context.Background())

	require.NoError(t, sink.Report(context.Background(), core.NewReport(uuid.New(), core.ReportInternalClosed, "")))
	assert.EqualValues(t, 1, calls.Load())
}

func TestWithNilTLSKeepsDefaultTransport(t *testing.T) {
	sink := New("manager", "http://localhost/report", "", time.Second, discard, WithTLS(nil))
	assert.Nil(t, sink.client.Transport)
}
