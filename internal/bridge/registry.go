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

package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

type entry struct {
	bridge       *core.Bridge
	lastActivity time.Time
}

// Registry holds the live bridges indexed by endpoint id and bridge id.
// Both indices and the activity timestamps change under one lock, so no
// reader sees a bridge reachable through one index but not the other.
type Registry struct {
	mu         sync.RWMutex
	byEndpoint map[uuid.UUID]uuid.UUID
	bridges    map[uuid.UUID]*entry
	now        func() time.Time
	onChange   func(active int)
}

type Option func(*Registry)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithSizeObserver is called with the bridge count after every change.
func WithSizeObserver(fn func(active int)) Option {
	return func(r *Registry) { r.onChange = fn }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		byEndpoint: make(map[uuid.UUID]uuid.UUID),
		bridges:    make(map[uuid.UUID]*entry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add stores b unconditionally. A previous bridge holding the same
// endpoint id or bridge id is dropped entirely.
func (r *Registry) Add(b *core.Bridge) {
	r.mu.Lock()
	if old, ok := r.bridges[b.BridgeID]; ok {
		delete(r.byEndpoint, old.bridge.EndpointID)
	}
	if oldBridgeID, ok := r.byEndpoint[b.EndpointID]; ok && oldBridgeID != b.BridgeID {
		delete(r.bridges, oldBridgeID)
	}
	r.byEndpoint[b.EndpointID] = b.BridgeID
	r.bridges[b.BridgeID] = &entry{bridge: b, lastActivity: r.now()}
	size := len(r.bridges)
	r.mu.Unlock()
	r.notify(size)
}

// AddIfAbsent registers b unless its bridge id is already live. It reports
// whether b was added.
func (r *Registry) AddIfAbsent(b *core.Bridge) bool {
	r.mu.Lock()
	if _, ok := r.bridges[b.BridgeID]; ok {
		r.mu.Unlock()
		return false
	}
	if oldBridgeID, ok := r.byEndpoint[b.EndpointID]; ok {
		delete(r.bridges, oldBridgeID)
	}
	r.byEndpoint[b.EndpointID] = b.BridgeID
	r.bridges[b.BridgeID] = &entry{bridge: b, lastActivity: r.now()}
	size := len(r.bridges)
	r.mu.Unlock()
	r.notify(size)
	return true
}

// ByEndpoint returns the bridge behind endpointID and marks it active.
func (r *Registry) ByEndpoint(endpointID uuid.UUID) (*core.Bridge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bridgeID, ok := r.byEndpoint[endpointID]
	if !ok {
		return nil, false
	}
	e := r.bridges[bridgeID]
	e.lastActivity = r.now()
	return e.bridge, true
}

// ByBridgeID returns the bridge without touching its activity time.
func (r *Registry) ByBridgeID(bridgeID uuid.UUID) (*core.Bridge, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bridges[bridgeID]
	if !ok {
		return nil, false
	}
	return e.bridge, true
}

func (r *Registry) Contains(bridgeID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bridges[bridgeID]
	return ok
}

func (r *Registry) Remove(bridgeID uuid.UUID) (*core.Bridge, bool) {
	r.mu.Lock()
	e, ok := r.bridges[bridgeID]
	if ok {
		delete(r.bridges, bridgeID)
		delete(r.byEndpoint, e.bridge.EndpointID)
	}
	size := len(r.bridges)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	r.notify(size)
	return e.bridge, true
}

// RemoveIfInactiveSince removes the bridge only if it is still idle since
// threshold. A bridge used after it was listed as inactive stays.
func (r *Registry) RemoveIfInactiveSince(bridgeID uuid.UUID, threshold time.Time) (*core.Bridge, bool) {
	r.mu.Lock()
	e, ok := r.bridges[bridgeID]
	if ok && !e.lastActivity.Before(threshold) {
		ok = false
	}
	if ok {
		delete(r.bridges, bridgeID)
		delete(r.byEndpoint, e.bridge.EndpointID)
	}
	size := len(r.bridges)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	r.notify(size)
	return e.bridge, true
}

// ListInactiveSince returns the bridges whose last activity precedes threshold.
func (r *Registry) ListInactiveSince(threshold time.Time) []*core.Bridge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*core.Bridge
	for _, e := range r.bridges {
		if e.lastActivity.Before(threshold) {
			out = append(out, e.bridge)
		}
	}
	return out
}

func (r *Registry) LastActivity(bridgeID uuid.UUID) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.bridges[bridgeID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastActivity, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bridges)
}

func (r *Registry) notify(size int) {
	if r.onChange != nil {
		r.onChange(size)
	}
}
