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

package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const msgOperationMissing = "Essential information about the target operation is missing"

// HTTP calls providers exposing a generic_http or generic_https interface.
type HTTP struct {
	client *http.Client
	logger *slog.Logger
}

func NewHTTP(client *http.Client, logger *slog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client, logger: logger}
}

func (h *HTTP) Invoke(ctx context.Context, bridge *core.Bridge, payload []byte, contentType string) (*core.InvocationResult, error) {
	props := bridge.TargetInterfaceProperties
	base, ok := core.HTTPBaseURL(props, bridge.TargetInterface.Secure())
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgOperationMissing)
	}
	method, path, ok := core.HTTPOperation(props, bridge.Operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgOperationMissing)
	}

	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgOperationMissing)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bridge.AuthorizationToken != "" {
		req.Header.Set("Authorization", "Bearer "+bridge.AuthorizationToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: provider is unreachable: %v", core.ErrExternal, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read provider response: %v", core.ErrExternal, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		h.logger.Debug("provider returned error status", "operation", bridge.Operation, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: provider responded with status %d: %s",
			core.ErrExternal, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	res := &core.InvocationResult{Status: resp.StatusCode}
	if len(data) > 0 {
		res.Payload = data
	}
	return res, nil
}
