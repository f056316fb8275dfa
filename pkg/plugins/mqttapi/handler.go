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

package mqttapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/correlation"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// handle serves one dynamic request. Failures are answered on the
// request's response topic when it names one.
func (e *Entrypoint) handle(ctx context.Context, msg inbound) {
	var req core.MQTTRequest
	if err := json.Unmarshal(msg.payload, &req); err != nil {
		e.logger.Error("invalid dynamic request template", "topic", msg.topic, "error", err)
		return
	}

	res, err := e.guardedServe(ctx, msg.topic, &req)
	if req.ResponseTopic == "" {
		if err != nil {
			e.logger.Error("dynamic request failed without a response topic", "topic", msg.topic, "error", err)
		}
		return
	}

	reply := core.MQTTResponse{TraceID: req.TraceID}
	if err != nil {
		reply.Status = core.StatusOf(err)
		reply.Payload = fmt.Sprintf("%d %s", reply.Status, core.Message(err))
	} else {
		reply.Status = res.Status
		reply.Payload = core.ResultPayload(res.Payload)
	}
	if reply.Payload == nil {
		reply.Payload = ""
	}
	e.respond(ctx, req.ResponseTopic, replyQoS(req.QoS), reply)
}

// guardedServe keeps a panicking call from taking the worker down with it.
// The caller gets an internal error reply instead.
func (e *Entrypoint) guardedServe(ctx context.Context, topic string, req *core.MQTTRequest) (res *core.InvocationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("dynamic request panic recovered", "topic", topic, "panic", r)
			res, err = nil, fmt.Errorf("%w: Unexpected failure: %v", core.ErrInternal, r)
		}
	}()
	res, err = e.serve(ctx, topic, req)
	if err == nil && res == nil {
		err = fmt.Errorf("%w: %s", core.ErrInternal, "Result is missing")
	}
	return res, err
}

func (e *Entrypoint) serve(ctx context.Context, topic string, req *core.MQTTRequest) (*core.InvocationResult, error) {
	endpointID, _, ok := strings.Cut(strings.TrimPrefix(topic, core.DynamicTopicPrefix), "/")
	if !ok || !strings.HasPrefix(topic, core.DynamicTopicPrefix) {
		return nil, fmt.Errorf("%w: Request topic is invalid", core.ErrInvalidInput)
	}
	if err := e.guard.AuthorizeToken(endpointID, req.Authentication); err != nil {
		return nil, err
	}
	payload, err := core.DecodePayload(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: Invalid message payload: %v", core.ErrInvalidInput, err)
	}
	return e.executor.Execute(ctx, endpointID, payload, core.ContentTypeJSON, topic)
}

func (e *Entrypoint) respond(ctx context.Context, topic string, qos byte, reply core.MQTTResponse) {
	data, err := json.Marshal(reply)
	if err != nil {
		e.logger.Error("encode dynamic reply failed", "topic", topic, "error", err)
		return
	}
	if err := e.client.Publish(ctx, topic, qos, data); err != nil {
		e.logger.Error("publish dynamic reply failed", "topic", topic, "trace_id", reply.TraceID, "error", err)
	}
}

func replyQoS(qos int) byte {
	if qos < 0 || qos > int(core.QoSExactlyOnce) {
		return core.QoSExactlyOnce
	}
	return byte(qos)
}

type providerReply struct {
	Status  int             `json:"status"`
	TraceID string          `json:"traceId"`
	Payload json.RawMessage `json:"payload"`
}

// handleReply fills the correlation entry a provider reply answers. It is
// the only writer into the table.
func (e *Entrypoint) handleReply(topic string, payload []byte) {
	var reply providerReply
	if err := json.Unmarshal(payload, &reply); err != nil || reply.TraceID == "" {
		e.logger.Error("malformed provider reply", "topic", topic, "error", err)
		return
	}
	body, err := core.DecodePayload(reply.Payload)
	if err != nil {
		e.logger.Error("malformed provider reply payload", "trace_id", reply.TraceID, "error", err)
		return
	}

	err = e.table.Fill(reply.TraceID, correlation.Response{Status: reply.Status, Payload: body})
	switch {
	case errors.Is(err, correlation.ErrUnknownTrace):
		e.logger.Warn("provider reply for unknown trace id dropped", "trace_id", reply.TraceID)
	case errors.Is(err, correlation.ErrAlreadyFilled):
		e.logger.Warn("duplicate provider reply dropped", "trace_id", reply.TraceID)
	case err != nil:
		e.logger.Error("store provider reply failed", "trace_id", reply.TraceID, "error", err)
	default:
		e.logger.Debug("provider reply stored", "trace_id", reply.TraceID, "status", reply.Status)
	}
	e.pending(e.table.Len())
}
