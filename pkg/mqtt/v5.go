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
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

type subscription struct {
	qos     byte
	handler Handler
}

// v5Client is the MQTT 5 driver built on autopaho. Subscriptions are
// replayed whenever the connection comes back up.
type v5Client struct {
	opts   Options
	logger *slog.Logger
	router *paho.StandardRouter
	cm     *autopaho.ConnectionManager
	subs   sync.Map // topic -> subscription
}

func newV5(opts Options, logger *slog.Logger) *v5Client {
	return &v5Client{
		opts:   opts,
		logger: logger,
		router: paho.NewStandardRouter(),
	}
}

func (c *v5Client) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(c.opts.BrokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		TlsCfg:                        c.opts.TLS,
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		ConnectUsername:               c.opts.Username,
		ConnectPassword:               []byte(c.opts.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			c.logger.Info("mqtt5 connection up", "client_id", c.opts.ClientID)
			go c.resubscribe(cm)
		},
		OnConnectError: func(err error) {
			c.logger.Warn("mqtt5 connect attempt failed", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.opts.ClientID,
			Router:   c.router,
		},
	}

	c.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := c.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	c.logger.Info("mqtt5 client connected", "broker", c.opts.BrokerURL)
	return nil
}

func (c *v5Client) resubscribe(cm *autopaho.ConnectionManager) {
	c.subs.Range(func(key, value any) bool {
		topic := key.(string)
		sub := value.(subscription)
		if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: sub.qos}},
		}); err != nil {
			c.logger.Error("mqtt5 resubscribe failed", "topic", topic, "error", err)
		}
		return true
	})
}

func (c *v5Client) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if c.cm == nil {
		return fmt.Errorf("mqtt5 client is not connected")
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     qos,
		Payload: payload,
	})
	return err
}

func (c *v5Client) Subscribe(ctx context.Context, topic string, qos byte, handler Handler) error {
	if c.cm == nil {
		return fmt.Errorf("mqtt5 client is not connected")
	}
	c.router.RegisterHandler(topic, func(p *paho.Publish) {
		safeDeliver(c.logger, handler, p.Topic, p.Payload)
	})
	c.subs.Store(topic, subscription{qos: qos, handler: handler})

	_, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
	})
	if err != nil {
		c.subs.Delete(topic)
		c.router.UnregisterHandler(topic)
		return fmt.Errorf("mqtt5 subscribe: %w", err)
	}
	return nil
}

func (c *v5Client) Unsubscribe(ctx context.Context, topic string) error {
	c.subs.Delete(topic)
	c.router.UnregisterHandler(topic)
	if c.cm == nil {
		return nil
	}
	if _, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}}); err != nil {
		return fmt.Errorf("mqtt5 unsubscribe: %w", err)
	}
	return nil
}

func (c *v5Client) Disconnect(ctx context.Context) error {
	if c.cm != nil {
		return c.cm.Disconnect(ctx)
	}
	return nil
}
