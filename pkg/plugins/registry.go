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
	"context"
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"golang.org/x/sync/errgroup"
)

// Registry owns the entrypoints and event sinks of the process and drives
// their lifecycle. Sinks keep their registration order.
type Registry struct {
	entrypoints map[string]core.Entrypoint
	sinks       map[string]core.EventSink
	order       []string
	healthy     map[string]bool
	logger      *slog.Logger
	mu          sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entrypoints: make(map[string]core.Entrypoint),
		sinks:       make(map[string]core.EventSink),
		healthy:     make(map[string]bool),
		logger:      logger,
	}
}

func (r *Registry) RegisterEntrypoint(e core.Entrypoint) {
	r.mu.Lock()
	r.entrypoints[e.Name()] = e
	r.mu.Unlock()
	r.logger.Info("registered entrypoint", "name", e.Name(), "type", e.Type())
}

func (r *Registry) RegisterSink(s core.EventSink) {
	r.mu.Lock()
	if _, exists := r.sinks[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Entrypoints() map[string]core.Entrypoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Entrypoint, len(r.entrypoints))
	for k, v := range r.entrypoints {
		cp[k] = v
	}
	return cp
}

// Sinks returns the sinks that connected successfully, in registration
// order.
func (r *Registry) Sinks() []core.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.EventSink, 0, len(r.order))
	for _, name := range r.order {
		if r.healthy[name] {
			out = append(out, r.sinks[name])
		}
	}
	return out
}

// ConnectSinks connects every registered sink. A sink that fails stays
// registered but is left out of Sinks.
func (r *Registry) ConnectSinks(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for _, name := range r.order {
		if err := r.sinks[name].Connect(ctx); err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// StartEntrypoints runs every entrypoint in g until ctx is done.
func (r *Registry) StartEntrypoints(ctx context.Context, g *errgroup.Group) {
	for name, ep := range r.Entrypoints() {
		g.Go(func() error {
			if err := ep.Start(ctx); err != nil {
				r.logger.Error("entrypoint failed", "name", name, "error", err)
				return err
			}
			return nil
		})
	}
}

func (r *Registry) StopEntrypoints(ctx context.Context) {
	for name, ep := range r.Entrypoints() {
		r.logger.Info("stopping entrypoint", "name", name)
		if err := ep.Stop(ctx); err != nil {
			r.logger.Warn("entrypoint stop failed", "name", name, "error", err)
		}
	}
}

func (r *Registry) DisconnectSinks(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if !r.healthy[name] {
			continue
		}
		r.logger.Info("disconnecting sink", "name", name)
		if err := r.sinks[name].Disconnect(ctx); err != nil {
			r.logger.Warn("sink disconnect failed", "name", name, "error", err)
		}
	}
}
