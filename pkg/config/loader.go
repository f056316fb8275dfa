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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"gopkg.in/yaml.v3"
)

const (
	PolicyCertificate = "certificate"
	PolicyToken       = "token"

	OverflowDropOldest = "drop_oldest"
	OverflowBlock      = "block"

	MQTTProtocolV5 = "v5"
	MQTTProtocolV3 = "v3"
)

type Config struct {
	System      SystemConfig   `yaml:"system"`
	Server      ServerConfig   `yaml:"server"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
	Translation PollConfig     `yaml:"translation" envPrefix:"DATA_MODEL_TRANSLATOR_"`
	Provider    ProviderConfig `yaml:"provider" envPrefix:"PROVIDER_"`
	Sweeper     SweeperConfig  `yaml:"sweeper"`
	Report      ReportConfig   `yaml:"report"`
	Security    SecurityConfig `yaml:"security"`
	Targets     TargetsConfig  `yaml:"targets"`
	Sinks       []SinkConfig   `yaml:"sinks"`
	Log         LogConfig      `yaml:"log"`
}

type SystemConfig struct {
	Name    string `yaml:"name" env:"SYSTEM_NAME"`
	Address string `yaml:"address" env:"SYSTEM_ADDRESS"`
}

type ServerConfig struct {
	Port         int    `yaml:"port" env:"SERVER_PORT"`
	SSLEnabled   bool   `yaml:"ssl_enabled" env:"SSL_ENABLED"`
	CertFile     string `yaml:"cert_file" env:"TLS_CERT_FILE"`
	KeyFile      string `yaml:"key_file" env:"TLS_KEY_FILE"`
	ClientCAFile string `yaml:"client_ca_file" env:"TLS_CLIENT_CA_FILE"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" env:"SERVER_MAX_BODY_BYTES"`
}

type MetricsConfig struct {
	Port int `yaml:"port" env:"METRICS_PORT"`
}

type MQTTConfig struct {
	BrokerAddress  string `yaml:"broker_address" env:"MQTT_BROKER_ADDRESS"`
	BrokerPort     int    `yaml:"broker_port" env:"MQTT_BROKER_PORT"`
	Protocol       string `yaml:"protocol" env:"MQTT_PROTOCOL"`
	Username       string `yaml:"username" env:"MQTT_USERNAME"`
	Password       string `yaml:"password" env:"MQTT_PASSWORD"`
	HandlerWorkers int    `yaml:"handler_workers" env:"MQTT_HANDLER_THREADS"`
	QueueSize      int    `yaml:"queue_size" env:"MQTT_QUEUE_SIZE"`
}

type PollConfig struct {
	GetResultTries int           `yaml:"get_result_tries" env:"GET_RESULT_TRIES"`
	GetResultWait  time.Duration `yaml:"get_result_wait" env:"GET_RESULT_WAIT"`
}

type ProviderConfig struct {
	PollConfig  `yaml:",inline"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
}

type SweeperConfig struct {
	Interval            time.Duration `yaml:"interval" env:"BRIDGE_CLOSING_INTERVAL"`
	InactivityThreshold time.Duration `yaml:"inactivity_threshold" env:"BRIDGE_INACTIVITY_THRESHOLD"`
}

type ReportConfig struct {
	QueueSize int           `yaml:"queue_size" env:"REPORT_QUEUE_SIZE"`
	Overflow  string        `yaml:"overflow" env:"REPORT_OVERFLOW"`
	Manager   ManagerConfig `yaml:"manager" envPrefix:"TRANSLATION_MANAGER_"`
}

type ManagerConfig struct {
	Address  string        `yaml:"address" env:"ADDRESS"`
	Port     int           `yaml:"port" env:"PORT"`
	BasePath string        `yaml:"base_path" env:"BASE_PATH"`
	Path     string        `yaml:"path" env:"REPORT_PATH"`
	Method   string        `yaml:"method" env:"REPORT_METHOD"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type SecurityConfig struct {
	AuthorizationEnabled bool   `yaml:"authorization_enabled" env:"ENABLE_AUTHORIZATION"`
	AuthenticationPolicy string `yaml:"authentication_policy" env:"AUTHENTICATION_POLICY"`
	TokenEncryptionKey   string `yaml:"token_encryption_key" env:"TOKEN_ENCRYPTION_KEY"`
	TokenIV              string `yaml:"token_iv" env:"TOKEN_INITIALIZATION_VECTOR"`
}

type TargetsConfig struct {
	Interfaces []string `yaml:"interfaces" env:"TARGET_INTERFACES" envSeparator:","`
}

type SinkConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load reads the YAML file at path, applies .env and environment
// overrides, then fills defaults and validates. A missing file leaves the
// configuration to the environment and the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	// .env is optional
	_ = godotenv.Load()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.System.Name == "" {
		c.System.Name = "InterfaceTranslatorToGenericMQTT"
	}
	if c.System.Address == "" {
		c.System.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.MQTT.BrokerAddress == "" {
		c.MQTT.BrokerAddress = "localhost"
	}
	if c.MQTT.BrokerPort == 0 {
		c.MQTT.BrokerPort = 1883
	}
	if c.MQTT.Protocol == "" {
		c.MQTT.Protocol = MQTTProtocolV5
	}
	if c.MQTT.Username == "" {
		c.MQTT.Username = c.System.Name
	}
	if c.MQTT.HandlerWorkers <= 0 {
		c.MQTT.HandlerWorkers = 5
	}
	if c.MQTT.QueueSize <= 0 {
		c.MQTT.QueueSize = 256
	}
	if c.Translation.GetResultTries <= 0 {
		c.Translation.GetResultTries = 10
	}
	if c.Translation.GetResultWait <= 0 {
		c.Translation.GetResultWait = time.Second
	}
	if c.Provider.GetResultTries <= 0 {
		c.Provider.GetResultTries = 10
	}
	if c.Provider.GetResultWait <= 0 {
		c.Provider.GetResultWait = time.Second
	}
	if c.Provider.HTTPTimeout <= 0 {
		c.Provider.HTTPTimeout = 30 * time.Second
	}
	if c.Sweeper.Interval <= 0 {
		c.Sweeper.Interval = time.Minute
	}
	if c.Sweeper.InactivityThreshold <= 0 {
		c.Sweeper.InactivityThreshold = time.Hour
	}
	if c.Report.QueueSize <= 0 {
		c.Report.QueueSize = 1024
	}
	if c.Report.Overflow == "" {
		c.Report.Overflow = OverflowDropOldest
	}
	if c.Report.Manager.Path == "" {
		c.Report.Manager.Path = "/report"
	}
	if c.Report.Manager.Method == "" {
		c.Report.Manager.Method = "POST"
	}
	if c.Report.Manager.Timeout <= 0 {
		c.Report.Manager.Timeout = 10 * time.Second
	}
	if c.Security.AuthenticationPolicy == "" {
		c.Security.AuthenticationPolicy = PolicyToken
	}
	if len(c.Targets.Interfaces) == 0 {
		c.Targets.Interfaces = []string{
			string(core.TemplateGenericMQTT),
			string(core.TemplateGenericMQTTS),
			string(core.TemplateGenericHTTP),
			string(core.TemplateGenericHTTPS),
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.MQTT.Protocol {
	case MQTTProtocolV5, MQTTProtocolV3:
	default:
		return fmt.Errorf("invalid mqtt.protocol %q", c.MQTT.Protocol)
	}
	switch c.Report.Overflow {
	case OverflowDropOldest, OverflowBlock:
	default:
		return fmt.Errorf("invalid report.overflow %q", c.Report.Overflow)
	}
	switch c.Security.AuthenticationPolicy {
	case PolicyCertificate, PolicyToken:
	default:
		return fmt.Errorf("invalid security.authentication_policy %q", c.Security.AuthenticationPolicy)
	}
	for _, name := range c.Targets.Interfaces {
		if core.NormalizeTemplate(name).Transport() == core.TransportUnknown {
			return fmt.Errorf("%w: target interface %s", core.ErrUnsupportedInterface, name)
		}
	}
	for i, s := range c.Sinks {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Type) == "" {
			return fmt.Errorf("sinks[%d]: name and type are required", i)
		}
	}
	return nil
}

// TargetTemplates returns the configured target interfaces, normalized.
func (c *Config) TargetTemplates() []core.InterfaceTemplate {
	out := make([]core.InterfaceTemplate, 0, len(c.Targets.Interfaces))
	for _, name := range c.Targets.Interfaces {
		out = append(out, core.NormalizeTemplate(name))
	}
	return out
}

// BrokerURL is the MQTT broker address in the form the drivers expect.
func (c *Config) BrokerURL() string {
	scheme := "tcp"
	if c.Server.SSLEnabled {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerAddress, c.MQTT.BrokerPort)
}
