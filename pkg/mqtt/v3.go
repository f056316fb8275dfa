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
	"context"
	"fmt"
	"log/slog"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// v3Client is the MQTT 3.1.1 driver. The library reconnects on its own;
// the connect handler restores subscriptions afterwards.
type v3Client struct {
	opts   Options
	logger *slog.Logger
	client pahomqtt.Client

	mu   sync.RWMutex
	subs map[string]subscription
}

func newV3(opts Options, logger *slog.Logger) *v3Client {
	return &v3Client{
		opts:   opts,
		logger: logger,
		subs:   make(map[string]subscription),
	}
}

func (c *v3Client) Connect(ctx context.Context) error {
	mqttOpts := pahomqtt.NewClientOptions().
		AddBroker(c.opts.BrokerURL).
		SetClientID(c.opts.ClientID).
		SetUsername(c.opts.Username).
		SetPassword(c.opts.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(client pahomqtt.Client) {
			c.logger.Info("mqtt client connected/reconnected to broker", "client_id", c.opts.ClientID)
			c.resubscribe(client)
		}).
		SetConnectionLostHandler(func(client pahomqtt.Client, err error) {
			c.logger.Warn("mqtt connection lost", "error", err)
		})
	if c.opts.TLS != nil {
		mqttOpts.SetTLSConfig(c.opts.TLS)
	}

	c.client = pahomqtt.NewClient(mqttOpts)
	if err := wait(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (c *v3Client) resubscribe(client pahomqtt.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, sub := range c.subs {
		token := client.Subscribe(topic, sub.qos, c.messageHandler(sub.handler))
		go func(topic string) {
			if token.Wait() && token.Error() != nil {
				c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", token.Error())
			}
		}(topic)
	}
}

func (c *v3Client) messageHandler(handler Handler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		safeDeliver(c.logger, handler, msg.Topic(), msg.Payload())
	}
}

func (c *v3Client) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if c.client == nil {
		return fmt.Errorf("mqtt client is not connected")
	}
	return wait(ctx, c.client.Publish(topic, qos, false, payload))
}

func (c *v3Client) Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error {
	if c.client == nil {
		return fmt.Errorf("mqtt client is not connected")
	}
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := wait(ctx, c.client.Subscribe(topic, qos, c.messageHandler(handler))); err != nil {
		c.mu.Lock()
		delete(c.subs, topic)
		c.mu.Unlock()
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	return nil
}

func (c *v3Client) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	return wait(ctx, c.client.Unsubscribe(topic))
}

func (c *v3Client) Disconnect(ctx context.Context) error {
	if c.client != nil {
		c.client.Disconnect(250)
	}
	return nil
}

func wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
