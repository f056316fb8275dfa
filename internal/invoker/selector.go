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

// Package invoker calls the provider behind a bridge, synchronously over
// HTTP or through a correlated publish over MQTT.
package invoker

import (
	"context"
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Selector dispatches on the bridge's target interface.
type Selector struct {
	http core.Invoker
	mqtt core.Invoker
}

func NewSelector(httpInvoker, mqttInvoker core.Invoker) *Selector {
	return &Selector{http: httpInvoker, mqtt: mqttInvoker}
}

// For returns the invoker serving template. Unknown templates are an
// internal error, never a silent no-op.
func (s *Selector) For(template core.InterfaceTemplate) (core.Invoker, error) {
	switch template.Transport() {
	case core.TransportHTTP:
		return s.http, nil
	case core.TransportMQTT:
		return s.mqtt, nil
	default:
		return nil, fmt.Errorf("%w: target interface %q", core.ErrUnsupportedInterface, template)
	}
}

func (s *Selector) Invoke(ctx context.Context, bridge *core.Bridge, payload []byte, contentType string) (*core.InvocationResult, error) {
	inv, err := s.For(bridge.TargetInterface)
	if err != nil {
		return nil, err
	}
	return inv.Invoke(ctx, bridge, payload, contentType)
}
