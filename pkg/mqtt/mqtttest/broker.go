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

// Package mqtttest provides an in-process broker for tests that need a
// pkg/mqtt Client without a real MQTT server.
package mqtttest

import (
	"context"
	"strings"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/mqtt"
)

type Message struct {
	Topic   string
	QoS     byte
	Payload []byte
}

// Broker fans published messages out to matching subscriptions
// asynchronously, one goroutine per delivery.
type Broker struct {
	mu        sync.Mutex
	subs      map[string]mqtt.Handler
	published []Message
	publishCh chan Message

	// PublishErr, when set, fails every publish.
	PublishErr error
}

func NewBroker() *Broker {
	return &Broker{
		subs:      make(map[string]mqtt.Handler),
		publishCh: make(chan Message, 256),
	}
}

func (b *Broker) Connect(context.Context) error { return nil }

func (b *Broker) Disconnect(context.Context) error { return nil }

func (b *Broker) Publish(_ context.Context, topic string, qos byte, payload []byte) error {
	b.mu.Lock()
	if b.PublishErr != nil {
		err := b.PublishErr
		b.mu.Unlock()
		return err
	}
	msg := Message{Topic: topic, QoS: qos, Payload: append([]byte(nil), payload...)}
	b.published = append(b.published, msg)
	var handlers []mqtt.Handler
	for filter, h := range b.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	select {
	case b.publishCh <- msg:
	default:
	}
	for _, h := range handlers {
		go h(topic, msg.Payload)
	}
	return nil
}

func (b *Broker) Subscribe(_ context.Context, topic string, _ byte, handler mqtt.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = handler
	return nil
}

func (b *Broker) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, topic)
	return nil
}

func (b *Broker) SetPublishErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PublishErr = err
}

func (b *Broker) Subscribed(topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.subs[topic]
	return ok
}

func (b *Broker) Published() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.published...)
}

// Next returns the next published message, or false when ctx ends first.
func (b *Broker) Next(ctx context.Context) (Message, bool) {
	select {
	case m := <-b.publishCh:
		return m, true
	case <-ctx.Done():
		return Message{}, false
	}
}

// Match reports whether topic matches the MQTT filter, honouring the
// single-level "+" and multi-level "#" wildcards.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
