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
	"log/slog"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Call describes one finished dynamic call. The bridge id is a bearer
// secret and is never logged.
type Call struct {
	EndpointID string
	Bridge     *core.Bridge
	Origin     string
	InputSize  int
	OutputSize int
	Status     int
	Elapsed    time.Duration
}

type TrafficLogger struct {
	logger *slog.Logger
}

func NewTrafficLogger(logger *slog.Logger) *TrafficLogger {
	return &TrafficLogger{logger: logger}
}

func (t *TrafficLogger) Log(c Call) {
	attrs := []any{
		"endpoint_id", c.EndpointID,
		"origin", c.Origin,
		"input_size", c.InputSize,
		"output_size", c.OutputSize,
		"status", c.Status,
		"duration", c.Elapsed,
	}
	if c.Bridge != nil {
		attrs = append(attrs,
			"input", c.Bridge.InputInterface.Transport().String(),
			"target", c.Bridge.TargetInterface.Transport().String(),
		)
	}
	t.logger.Info("traffic", attrs...)
}
