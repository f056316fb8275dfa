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

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

func TestTrafficLoggerOmitsBridgeID(t *testing.T) {
	var buf bytes.Buffer
	tl := NewTrafficLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	bridge := &core.Bridge{
		EndpointID:      uuid.New(),
		BridgeID:        uuid.New(),
		InputInterface:  core.TemplateGenericHTTP,
		TargetInterface: core.TemplateGenericMQTT,
	}
	tl.Log(Call{
		EndpointID: bridge.EndpointID.String(),
		Bridge:     bridge,
		Origin:     "consumer-1",
		InputSize:  12,
		Status:     200,
		Elapsed:    time.Millisecond,
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "traffic", rec["msg"])
	assert.Equal(t, "http", rec["input"])
	assert.Equal(t, "mqtt", rec["target"])
	assert.Equal(t, float64(200), rec["status"])
	assert.NotContains(t, buf.String(), bridge.BridgeID.String())
}
