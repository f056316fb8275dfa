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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/management"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// ErrorMessage is the management API error body.
type ErrorMessage struct {
	ErrorMessage  string `json:"errorMessage"`
	ErrorCode     int    `json:"errorCode"`
	ExceptionType string `json:"exceptionType"`
	Origin        string `json:"origin,omitempty"`
}

func exceptionType(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		return "INVALID_PARAMETER"
	case errors.Is(err, core.ErrAuth):
		return "AUTH"
	case errors.Is(err, core.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, core.ErrAborted), errors.Is(err, core.ErrExternal):
		return "EXTERNAL_SERVER_ERROR"
	default:
		return "INTERNAL_SERVER_ERROR"
	}
}

func (e *Entrypoint) requireManagement(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var peer []*x509.Certificate
		if r.TLS != nil {
			peer = r.TLS.PeerCertificates
		}
		if err := e.deps.ManagementGuard.Authorize(peer, r.Header.Get("Authorization")); err != nil {
			e.writeManagementError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (e *Entrypoint) handleCheckTargets(w http.ResponseWriter, r *http.Request) {
	body, err := e.readBody(w, r)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	req, err := management.DecodeCheckTargets(body)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	resp, err := e.deps.Manager.CheckTargets(req)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *Entrypoint) handleInitializeBridge(w http.ResponseWriter, r *http.Request) {
	body, err := e.readBody(w, r)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	req, err := management.DecodeInitializeBridge(body)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	desc, err := e.deps.Manager.InitializeBridge(r.Context(), req)
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (e *Entrypoint) handleAbortBridge(w http.ResponseWriter, r *http.Request) {
	active, err := e.deps.Manager.AbortBridge(r.Context(), chi.URLParam(r, "bridgeId"))
	if err != nil {
		e.writeManagementError(w, r, err)
		return
	}
	if active {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDynamic runs one bridged call. The call is detached from the
// client connection: it ends at the poll boundaries of its legs, never
// halfway through a target invocation.
func (e *Entrypoint) handleDynamic(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointId")
	if err := e.deps.BridgeGuard.AuthorizeHeader(endpointID, r.Header.Get("Authorization")); err != nil {
		writeDynamicError(w, err)
		return
	}

	body, err := e.readBody(w, r)
	if err != nil {
		writeDynamicError(w, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	res, err := e.deps.Executor.Execute(ctx, endpointID, body, r.Header.Get("Content-Type"), core.CallerID(r))
	if err != nil {
		writeDynamicError(w, err)
		return
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		w.Header().Set("Content-Type", accept)
	}
	if res.HasPayload() {
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Payload)))
	}
	w.WriteHeader(status)
	if res.HasPayload() {
		if _, err := w.Write(res.Payload); err != nil {
			e.logger.Warn("write dynamic response failed", "endpoint_id", endpointID, "error", err)
		}
	}
}

func (e *Entrypoint) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: Payload exceeds %d bytes", core.ErrInvalidInput, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: Payload could not be read", core.ErrInvalidInput)
	}
	return body, nil
}

func (e *Entrypoint) writeManagementError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.StatusOf(err)
	if status >= http.StatusInternalServerError {
		e.logger.Error("management call failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorMessage{
		ErrorMessage:  core.Message(err),
		ErrorCode:     status,
		ExceptionType: exceptionType(err),
		Origin:        r.Method + " " + r.URL.Path,
	})
}

// writeDynamicError answers with "<status> <message>" as plain text.
func writeDynamicError(w http.ResponseWriter, err error) {
	status := core.StatusOf(err)
	w.Header().Set("Content-Type", core.ContentTypeText)
	w.WriteHeader(status)
	fmt.Fprintf(w, "%d %s", status, core.Message(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", core.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
