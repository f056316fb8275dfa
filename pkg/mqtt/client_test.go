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

package mqtt

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsDriver(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := Options{BrokerURL: "tcp://localhost:1883", ClientID: "it"}

	c, err := New("v5", opts, logger)
	require.NoError(t, err)
	assert.IsType(t, &v5Client{}, c)

	c, err = New("V3", opts, logger)
	require.NoError(t, err)
	assert.IsType(t, &v3Client{}, c)

	_, err = New("v4", opts, logger)
	assert.Error(t, err)
}

func TestSafeDeliverRecoversPanic(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NotPanics(t, func() {
		safeDeliver(logger, func(string, []byte) { panic("boom") }, "a/b", nil)
	})
}
