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

// Package mqttapi serves dynamic bridge calls arriving over MQTT and
// collects provider replies for the MQTT invoker.
package mqttapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/correlation"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/mqtt"
)

// TokenGuard checks the bridge credential carried in a request envelope.
type TokenGuard interface {
	AuthorizeToken(endpointID, token string) error
}

type Config struct {
	// ReplyTopic receives provider replies for this process.
	ReplyTopic string
	Workers    int
	QueueSize  int
}

type inbound struct {
	topic   string
	payload []byte
}

type Entrypoint struct {
	name     string
	cfg      Config
	client   mqtt.Client
	executor core.Executor
	guard    TokenGuard
	table    *correlation.Table
	queue    chan inbound
	pending  func(int)
	logger   *slog.Logger

	mu     sync.Mutex
	topics map[string]string // endpoint id -> dynamic topic

	wg sync.WaitGroup
}

type Option func(*Entrypoint)

// WithPendingObserver is told the correlation table size after every reply.
func WithPendingObserver(fn func(int)) Option {
	return func(e *Entrypoint) { e.pending = fn }
}

func New(name string, cfg Config, client mqtt.Client, executor core.Executor, guard TokenGuard, table *correlation.Table, logger *slog.Logger, opts ...Option) *Entrypoint {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	e := &Entrypoint{
		name:     name,
		cfg:      cfg,
		client:   client,
		executor: executor,
		guard:    guard,
		table:    table,
		queue:    make(chan inbound, cfg.QueueSize),
		pending:  func(int) {},
		logger:   logger,
		topics:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "mqtt" }

// Start subscribes the reply topic and runs the handler pool until ctx ends.
func (e *Entrypoint) Start(ctx context.Context) error {
	if err := e.client.Subscribe(ctx, e.cfg.ReplyTopic, core.QoSExactlyOnce, e.handleReply); err != nil {
		return fmt.Errorf("subscribe reply topic: %w", err)
	}
	e.logger.Info("mqtt entrypoint started", "name", e.name, "reply_topic", e.cfg.ReplyTopic, "workers", e.cfg.Workers)

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.work(ctx)
	}
	<-ctx.Done()
	e.wg.Wait()
	return nil
}

// Stop drops every subscription held by the entrypoint.
func (e *Entrypoint) Stop(ctx context.Context) error {
	e.mu.Lock()
	topics := make([]string, 0, len(e.topics)+1)
	for _, topic := range e.topics {
		topics = append(topics, topic)
	}
	clear(e.topics)
	e.mu.Unlock()
	topics = append(topics, e.cfg.ReplyTopic)

	var errs []error
	for _, topic := range topics {
		if err := e.client.Unsubscribe(ctx, topic); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", topic, err))
		}
	}
	e.logger.Info("mqtt entrypoint stopped", "name", e.name)
	return errors.Join(errs...)
}

// InitializeBridge subscribes the bridge's dynamic topic.
func (e *Entrypoint) InitializeBridge(ctx context.Context, bridge *core.Bridge) error {
	endpointID := bridge.EndpointID.String()
	topic := core.DynamicTopicPrefix + endpointID + "/" + bridge.Operation
	if err := e.client.Subscribe(ctx, topic, core.QoSExactlyOnce, e.enqueue); err != nil {
		return fmt.Errorf("%w: Unable to subscribe to the input topic: %v", core.ErrExternal, err)
	}
	e.mu.Lock()
	e.topics[endpointID] = topic
	e.mu.Unlock()
	e.logger.Debug("dynamic topic subscribed", "topic", topic)
	return nil
}

// AbortBridge releases the bridge's dynamic topic.
func (e *Entrypoint) AbortBridge(ctx context.Context, bridge *core.Bridge) {
	endpointID := bridge.EndpointID.String()
	e.mu.Lock()
	topic, ok := e.topics[endpointID]
	delete(e.topics, endpointID)
	e.mu.Unlock()
	if !ok {
		return
	}
	if err := e.client.Unsubscribe(ctx, topic); err != nil {
		e.logger.Warn("unsubscribe dynamic topic failed", "topic", topic, "error", err)
		return
	}
	e.logger.Debug("dynamic topic unsubscribed", "topic", topic)
}

func (e *Entrypoint) enqueue(topic string, payload []byte) {
	select {
	case e.queue <- inbound{topic: topic, payload: payload}:
	default:
		e.logger.Warn("dynamic request dropped, handler queue is full", "topic", topic, "queue_size", e.cfg.QueueSize)
	}
}

func (e *Entrypoint) work(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.queue:
			e.handle(ctx, msg)
		}
	}
}
