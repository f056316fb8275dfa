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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/correlation"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/retry"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/mqtt"
)

// MQTT publishes a request envelope to the provider's topic and waits for
// the reply subscriber to fill the correlation entry.
type MQTT struct {
	client     mqtt.Client
	table      *correlation.Table
	live       core.LivenessChecker
	policy     func() retry.FixedDelay
	replyTopic string
	pending    func(int)
	logger     *slog.Logger
}

type MQTTOption func(*MQTT)

// WithPendingObserver is told the correlation table size after every
// change made by the invoker.
func WithPendingObserver(fn func(int)) MQTTOption {
	return func(m *MQTT) { m.pending = fn }
}

func NewMQTT(client mqtt.Client, table *correlation.Table, live core.LivenessChecker, policy func() retry.FixedDelay, replyTopic string, logger *slog.Logger, opts ...MQTTOption) *MQTT {
	m := &MQTT{
		client:     client,
		table:      table,
		live:       live,
		policy:     policy,
		replyTopic: replyTopic,
		pending:    func(int) {},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MQTT) Invoke(ctx context.Context, bridge *core.Bridge, payload []byte, contentType string) (*core.InvocationResult, error) {
	baseTopic, _ := core.StringProp(bridge.TargetInterfaceProperties, core.PropBaseTopic)
	if baseTopic == "" || bridge.Operation == "" {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidInput, msgOperationMissing)
	}

	body, err := core.EncodePayload(payload, contentType)
	if err != nil {
		return nil, err
	}

	traceID := uuid.NewString()
	envelope, err := json.Marshal(core.MQTTRequest{
		TraceID:        traceID,
		Authentication: bridge.AuthorizationToken,
		ResponseTopic:  m.replyTopic,
		QoS:            int(core.QoSExactlyOnce),
		Params:         map[string]string{},
		Payload:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode provider request: %v", core.ErrInternal, err)
	}

	if !m.table.Register(traceID) {
		return nil, fmt.Errorf("%w: trace id collision", core.ErrInternal)
	}
	m.pending(m.table.Len())
	defer func() {
		m.table.Remove(traceID)
		m.pending(m.table.Len())
	}()

	topic := baseTopic + bridge.Operation
	if err := m.client.Publish(ctx, topic, core.QoSExactlyOnce, envelope); err != nil {
		return nil, fmt.Errorf("%w: publish to provider: %v", core.ErrExternal, err)
	}
	log := m.logger.With("trace_id", traceID, "topic", topic)
	log.Debug("provider request published")

	policy := m.policy().WithOverrides(bridge.Settings, core.SettingProviderGetResultTries, core.SettingProviderGetResultWait)
	done := m.table.Done(traceID)
	for i := 0; i < policy.MaxAttempts; i++ {
		if !m.live.Contains(bridge.BridgeID) {
			return nil, fmt.Errorf("%w: %s", core.ErrAborted, core.MsgBridgeAborted)
		}
		if resp, ok := m.table.Take(traceID); ok {
			log.Debug("provider reply consumed", "attempt", i+1, "status", resp.Status)
			return &core.InvocationResult{Status: resp.Status, Payload: resp.Payload}, nil
		}
		if err := policy.Wait(ctx, done); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrAborted, err)
		}
	}

	log.Warn("provider did not respond in time", "tries", policy.MaxAttempts)
	return nil, fmt.Errorf("%w: Provider did not respond in time", core.ErrExternal)
}
