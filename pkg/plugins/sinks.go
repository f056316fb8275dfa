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

package plugins

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	amqpsink "github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/amqp"
	kafkasink "github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/kafka"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/manager"
	natssink "github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/nats"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/rabbitmq"
	redissink "github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/redis"
	solacesink "github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/solace"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/ws"
)

// NewSink builds an additional event sink from its configuration entry.
func NewSink(sc config.SinkConfig, logger *slog.Logger) (core.EventSink, error) {
	c := sc.Config
	switch strings.ToLower(sc.Type) {
	case "manager", "http":
		timeout, err := duration(c, "timeout", 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", sc.Name, err)
		}
		if c["url"] == "" {
			return nil, fmt.Errorf("sink %s: url is required", sc.Name)
		}
		return manager.New(sc.Name, c["url"], c["method"], timeout, logger), nil
	case "kafka":
		return kafkasink.New(sc.Name, list(c["brokers"]), c["topic"], logger), nil
	case "rabbitmq":
		return rabbitmq.New(sc.Name, c["url"], c["queue"], logger), nil
	case "amqp", "jms":
		return amqpsink.New(sc.Name, c["url"], c["address"], logger), nil
	case "solace":
		return solacesink.New(sc.Name, c["host"], c["vpn"], c["username"], c["password"], c["topic"], logger), nil
	case "redis":
		db, err := integer(c, "db")
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", sc.Name, err)
		}
		maxLen, err := integer(c, "max_len")
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", sc.Name, err)
		}
		return redissink.New(sc.Name, c["addr"], c["password"], db, c["stream"], int64(maxLen), logger), nil
	case "nats":
		return natssink.New(sc.Name, c["url"], c["subject"], logger), nil
	case "websocket", "ws":
		return ws.New(sc.Name, logger), nil
	default:
		return nil, fmt.Errorf("sink %s: unknown type %q", sc.Name, sc.Type)
	}
}

// RegisterSinks builds and registers every configured sink. Entries that
// cannot be built are logged and skipped.
func RegisterSinks(reg *Registry, sinks []config.SinkConfig, logger *slog.Logger) {
	for _, sc := range sinks {
		sink, err := NewSink(sc, logger.With("sink", sc.Name))
		if err != nil {
			logger.Warn("skipping sink", "name", sc.Name, "type", sc.Type, "error", err)
			continue
		}
		reg.RegisterSink(sink)
	}
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func integer(c map[string]string, key string) (int, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func duration(c map[string]string, key string, def time.Duration) (time.Duration, error) {
	v, ok := c[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
