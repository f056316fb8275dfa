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

package management

import (
	"context"
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Inputs dispatches the input-side bridge lifecycle to the handler of the
// bridge's input transport.
type Inputs struct {
	HTTP core.BridgeHandler
	MQTT core.BridgeHandler
}

func (in Inputs) handler(t core.InterfaceTemplate) (core.BridgeHandler, error) {
	var h core.BridgeHandler
	switch t.Transport() {
	case core.TransportHTTP:
		h = in.HTTP
	case core.TransportMQTT:
		h = in.MQTT
	}
	if h == nil {
		return nil, fmt.Errorf("%w: interface %s is not supported", core.ErrUnsupportedInterface, t)
	}
	return h, nil
}

func (in Inputs) InitializeBridge(ctx context.Context, b *core.Bridge) error {
	h, err := in.handler(b.InputInterface)
	if err != nil {
		return err
	}
	return h.InitializeBridge(ctx, b)
}

func (in Inputs) AbortBridge(ctx context.Context, b *core.Bridge) {
	if h, err := in.handler(b.InputInterface); err == nil {
		h.AbortBridge(ctx, b)
	}
}

// HTTPInput needs no preparation: the dynamic route resolves endpoints
// through the registry.
type HTTPInput struct{}

func (HTTPInput) InitializeBridge(context.Context, *core.Bridge) error { return nil }
func (HTTPInput) AbortBridge(context.Context, *core.Bridge)            {}
