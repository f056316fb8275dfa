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

package translation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusError      TaskStatus = "ERROR"
)

// Operation names a translator may override in its operations property.
const (
	OpInitTranslation      = "initTranslation"
	OpGetTranslationResult = "getTranslationResult"
	OpAbortTranslation     = "abortTranslation"
)

const queryTaskID = "taskId"

// TaskResult is one poll answer. Result holds the base64 output when DONE
// and the error message when ERROR.
type TaskResult struct {
	Status   TaskStatus `json:"status"`
	Result   string     `json:"result"`
	MimeType string     `json:"mimeType"`
}

type initRequest struct {
	FromModelID string         `json:"fromModelId"`
	ToModelID   string         `json:"toModelId"`
	Input       string         `json:"input"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Driver talks to an external data-model translator.
type Driver interface {
	Init(ctx context.Context, desc *core.TranslatorDescriptor, input []byte) (string, error)
	Result(ctx context.Context, desc *core.TranslatorDescriptor, taskID string) (*TaskResult, error)
	Abort(ctx context.Context, desc *core.TranslatorDescriptor, taskID string)
}

type operation struct {
	method string
	path   string
}

var defaultOperations = map[string]operation{
	OpInitTranslation:      {http.MethodPost, "/init-translation"},
	OpGetTranslationResult: {http.MethodGet, "/get-translation-result"},
	OpAbortTranslation:     {http.MethodDelete, "/abort-translation"},
}

// HTTPDriver reaches translators over HTTP, using https when the gateway
// itself runs with TLS.
type HTTPDriver struct {
	client *http.Client
	secure bool
	logger *slog.Logger
}

func NewHTTPDriver(client *http.Client, secure bool, logger *slog.Logger) *HTTPDriver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDriver{client: client, secure: secure, logger: logger}
}

func (d *HTTPDriver) Init(ctx context.Context, desc *core.TranslatorDescriptor, input []byte) (string, error) {
	body, err := json.Marshal(initRequest{
		FromModelID: desc.FromModelID,
		ToModelID:   desc.ToModelID,
		Input:       base64.StdEncoding.EncodeToString(input),
		Settings:    desc.ConfigurationSettings,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode translation request: %v", core.ErrInternal, err)
	}

	data, err := d.call(ctx, desc, OpInitTranslation, "", body)
	if err != nil {
		return "", err
	}

	taskID := strings.TrimSpace(string(data))
	if strings.HasPrefix(taskID, `"`) {
		if err := json.Unmarshal([]byte(taskID), &taskID); err != nil {
			return "", fmt.Errorf("%w: invalid task identifier from data model translator", core.ErrExternal)
		}
	}
	if taskID == "" {
		return "", fmt.Errorf("%w: data model translator returned no task identifier", core.ErrExternal)
	}
	return taskID, nil
}

func (d *HTTPDriver) Result(ctx context.Context, desc *core.TranslatorDescriptor, taskID string) (*TaskResult, error) {
	data, err := d.call(ctx, desc, OpGetTranslationResult, taskID, nil)
	if err != nil {
		return nil, err
	}
	var res TaskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: invalid translation result: %v", core.ErrExternal, err)
	}
	return &res, nil
}

// Abort is best-effort; failures are only logged.
func (d *HTTPDriver) Abort(ctx context.Context, desc *core.TranslatorDescriptor, taskID string) {
	if _, err := d.call(ctx, desc, OpAbortTranslation, taskID, nil); err != nil {
		d.logger.Error("Error during data model translation abort", "task_id", taskID, "error", err)
	}
}

func (d *HTTPDriver) call(ctx context.Context, desc *core.TranslatorDescriptor, opName, taskID string, body []byte) ([]byte, error) {
	props := desc.InterfaceProperties
	base, ok := core.HTTPBaseURL(props, d.secure)
	if !ok {
		return nil, fmt.Errorf("%w: data model translator address is missing", core.ErrInternal)
	}

	op := defaultOperations[opName]
	if method, path, ok := core.HTTPOperation(props, opName); ok {
		op = operation{method: method, path: path}
	} else if ops, isMap := props[core.PropOperations].(map[string]any); isMap && ops[opName] != nil {
		d.logger.Warn("Invalid operations property for data model translator", "operation", opName, "url", base)
	}

	target := base + op.path
	if taskID != "" {
		target += "?" + url.Values{queryTaskID: {taskID}}.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, op.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build translator request: %v", core.ErrInternal, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: data model translator is unreachable: %v", core.ErrExternal, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read translator response: %v", core.ErrExternal, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: data model translator responded with status %d: %s",
			core.ErrExternal, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
