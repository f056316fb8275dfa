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

package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
system:
  name: MyTranslator
  address: 10.0.0.5
server:
  port: 8443
  ssl_enabled: true
mqtt:
  broker_address: broker.local
  broker_port: 8883
  protocol: v3
  handler_workers: 8
translation:
  get_result_tries: 3
  get_result_wait: 250ms
provider:
  get_result_tries: 7
  get_result_wait: 2s
  http_timeout: 5s
sweeper:
  interval: 30s
  inactivity_threshold: 15m
report:
  queue_size: 10
  overflow: block
  manager:
    address: manager.local
    port: 8445
    base_path: /translation-manager
security:
  authorization_enabled: true
  authentication_policy: certificate
targets:
  interfaces: [generic_mqtt]
sinks:
  - name: audit
    type: kafka
    config:
      brokers: "localhost:9092"
      topic: bridge-reports
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MyTranslator", cfg.System.Name)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.True(t, cfg.Server.SSLEnabled)
	assert.Equal(t, MQTTProtocolV3, cfg.MQTT.Protocol)
	assert.Equal(t, 8, cfg.MQTT.HandlerWorkers)
	assert.Equal(t, "MyTranslator", cfg.MQTT.Username)
	assert.Equal(t, 3, cfg.Translation.GetResultTries)
	assert.Equal(t, 250*time.Millisecond, cfg.Translation.GetResultWait)
	assert.Equal(t, 7, cfg.Provider.GetResultTries)
	assert.Equal(t, 2*time.Second, cfg.Provider.GetResultWait)
	assert.Equal(t, 5*time.Second, cfg.Provider.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.InactivityThreshold)
	assert.Equal(t, OverflowBlock, cfg.Report.Overflow)
	assert.Equal(t, "/report", cfg.Report.Manager.Path)
	assert.Equal(t, PolicyCertificate, cfg.Security.AuthenticationPolicy)
	assert.Equal(t, []core.InterfaceTemplate{core.TemplateGenericMQTT}, cfg.TargetTemplates())
	require.Len(t, cfg.Sinks, 1)
	assert.Equal(t, "bridge-reports", cfg.Sinks[0].Config["topic"])
	assert.Equal(t, "ssl://broker.local:8883", cfg.BrokerURL())
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "InterfaceTranslatorToGenericMQTT", cfg.System.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.MQTT.HandlerWorkers)
	assert.Equal(t, 10, cfg.Translation.GetResultTries)
	assert.Equal(t, time.Second, cfg.Translation.GetResultWait)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, time.Hour, cfg.Sweeper.InactivityThreshold)
	assert.Equal(t, OverflowDropOldest, cfg.Report.Overflow)
	assert.False(t, cfg.Security.AuthorizationEnabled)
	assert.Len(t, cfg.TargetTemplates(), 4)
	assert.Equal(t, "tcp://localhost:1883", cfg.BrokerURL())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
translation:
  get_result_tries: 3
`)
	t.Setenv("SERVER_PORT", "9443")
	t.Setenv("DATA_MODEL_TRANSLATOR_GET_RESULT_TRIES", "12")
	t.Setenv("PROVIDER_GET_RESULT_WAIT", "1500ms")
	t.Setenv("ENABLE_AUTHORIZATION", "true")
	t.Setenv("TARGET_INTERFACES", "generic_http,generic_https")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, 12, cfg.Translation.GetResultTries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Provider.GetResultWait)
	assert.True(t, cfg.Security.AuthorizationEnabled)
	assert.Equal(t, []core.InterfaceTemplate{core.TemplateGenericHTTP, core.TemplateGenericHTTPS}, cfg.TargetTemplates())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overflow", "report:\n  overflow: spill\n"},
		{"mqtt protocol", "mqtt:\n  protocol: v4\n"},
		{"policy", "security:\n  authentication_policy: basic\n"},
		{"target", "targets:\n  interfaces: [generic_coap]\n"},
		{"sink", "sinks:\n  - name: nameless-type\n"},
		{"yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestWatcherReloadsDefaults(t *testing.T) {
	path := writeConfig(t, "translation:\n  get_result_tries: 3\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	defaults := NewDefaults(cfg)
	assert.Equal(t, 3, defaults.TranslationPolicy().MaxAttempts)

	w := NewWatcher(path, defaults, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, os.WriteFile(path, []byte("translation:\n  get_result_tries: 6\nsweeper:\n  inactivity_threshold: 5m\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	w.check()
	assert.Equal(t, 6, defaults.TranslationPolicy().MaxAttempts)
	assert.Equal(t, 5*time.Minute, defaults.InactivityThreshold())
}

func TestWatcherKeepsDefaultsOnBadReload(t *testing.T) {
	path := writeConfig(t, "provider:\n  get_result_tries: 4\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	defaults := NewDefaults(cfg)

	w := NewWatcher(path, defaults, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, os.WriteFile(path, []byte("report:\n  overflow: spill\n"), 0o644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	w.check()
	assert.Equal(t, 4, defaults.ProviderPolicy().MaxAttempts)
}
