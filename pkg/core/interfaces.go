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

package core

import (
	"context"

	"github.com/google/uuid"
)

// Entrypoint accepts traffic from consumers (dynamic calls or management).
type Entrypoint interface {
	Name() string
	Type() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventSink receives bridge lifecycle reports.
type EventSink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Report(ctx context.Context, r Report) error
	Disconnect(ctx context.Context) error
}

// EventEmitter queues a report without blocking the caller on delivery.
type EventEmitter interface {
	Emit(r Report)
}

// LivenessChecker tells poll loops whether a bridge is still registered.
type LivenessChecker interface {
	Contains(bridgeID uuid.UUID) bool
}

type Invoker interface {
	Invoke(ctx context.Context, bridge *Bridge, payload []byte, contentType string) (*InvocationResult, error)
}

type Translator interface {
	Translate(ctx context.Context, bridgeID uuid.UUID, desc *TranslatorDescriptor, input []byte, settings map[string]any) ([]byte, string, error)
}

// Executor runs one dynamic call against the bridge behind endpointID.
type Executor interface {
	Execute(ctx context.Context, endpointID string, payload []byte, contentType string, origin string) (*InvocationResult, error)
}

// BridgeHandler prepares and releases the input side of a bridge.
type BridgeHandler interface {
	InitializeBridge(ctx context.Context, bridge *Bridge) error
	AbortBridge(ctx context.Context, bridge *Bridge)
}
