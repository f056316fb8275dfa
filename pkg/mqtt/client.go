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

// Package mqtt hides the broker client behind a small interface with an
// MQTT 5 driver and an MQTT 3.1.1 driver.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
)

// Handler receives one inbound message. It runs on the client's delivery
// goroutine and must not block.
type Handler func(topic string, payload []byte)

type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
	Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLS       *tls.Config
}

const (
	ProtocolV5 = "v5"
	ProtocolV3 = "v3"
)

// New returns the driver for protocol.
func New(protocol string, opts Options, logger *slog.Logger) (Client, error) {
	switch strings.ToLower(protocol) {
	case ProtocolV5:
		return newV5(opts, logger), nil
	case ProtocolV3:
		return newV3(opts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mqtt protocol %q", protocol)
	}
}

func safeDeliver(logger *slog.Logger, handler Handler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("mqtt handler panic recovered", "topic", topic, "panic", r)
		}
	}()
	handler(topic, payload)
}
