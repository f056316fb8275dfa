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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newBridge() *core.Bridge {
	return &core.Bridge{
		EndpointID:      uuid.New(),
		BridgeID:        uuid.New(),
		InputInterface:  core.TemplateGenericHTTP,
		TargetInterface: core.TemplateGenericMQTT,
		Operation:       "query",
	}
}

func TestRegistryAddAndLookup(t *testing.T) {
	reg := NewRegistry()
	b := newBridge()
	reg.Add(b)

	got, ok := reg.ByEndpoint(b.EndpointID)
	require.True(t, ok)
	assert.Equal(t, b.BridgeID, got.BridgeID)

	got, ok = reg.ByBridgeID(b.BridgeID)
	require.True(t, ok)
	assert.Equal(t, b.EndpointID, got.EndpointID)
	assert.True(t, reg.Contains(b.BridgeID))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryLookupMiss(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.ByEndpoint(uuid.New())
	assert.False(t, ok)
	_, ok = reg.ByBridgeID(uuid.New())
	assert.False(t, ok)
}

func TestRegistryRemoveDropsBothIndices(t *testing.T) {
	reg := NewRegistry()
	b := newBridge()
	reg.Add(b)

	removed, ok := reg.Remove(b.BridgeID)
	require.True(t, ok)
	assert.Same(t, b, removed)

	_, ok = reg.ByEndpoint(b.EndpointID)
	assert.False(t, ok)
	_, ok = reg.ByBridgeID(b.BridgeID)
	assert.False(t, ok)
	_, ok = reg.LastActivity(b.BridgeID)
	assert.False(t, ok)

	_, ok = reg.Remove(b.BridgeID)
	assert.False(t, ok, "second remove must report absence")
}

func TestRegistryAddOverwritesCollisions(t *testing.T) {
	reg := NewRegistry()
	first := newBridge()
	reg.Add(first)

	sameBridgeID := newBridge()
	sameBridgeID.BridgeID = first.BridgeID
	reg.Add(sameBridgeID)

	_, ok := reg.ByEndpoint(first.EndpointID)
	assert.False(t, ok, "old endpoint index must not survive an overwrite")
	got, ok := reg.ByEndpoint(sameBridgeID.EndpointID)
	require.True(t, ok)
	assert.Same(t, sameBridgeID, got)

	sameEndpoint := newBridge()
	sameEndpoint.EndpointID = sameBridgeID.EndpointID
	reg.Add(sameEndpoint)

	assert.False(t, reg.Contains(sameBridgeID.BridgeID))
	assert.True(t, reg.Contains(sameEndpoint.BridgeID))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryAddIfAbsentKeepsLiveBridge(t *testing.T) {
	reg := NewRegistry()
	first := newBridge()
	require.True(t, reg.AddIfAbsent(first))

	dup := newBridge()
	dup.BridgeID = first.BridgeID
	assert.False(t, reg.AddIfAbsent(dup))

	got, ok := reg.ByBridgeID(first.BridgeID)
	require.True(t, ok)
	assert.Same(t, first, got)
	_, ok = reg.ByEndpoint(dup.EndpointID)
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryIndicesStayConsistent(t *testing.T) {
	reg := NewRegistry()
	bridges := make([]*core.Bridge, 50)
	for i := range bridges {
		bridges[i] = newBridge()
	}

	var wg sync.WaitGroup
	for i, b := range bridges {
		wg.Add(1)
		go func(n int, b *core.Bridge) {
			defer wg.Done()
			reg.Add(b)
			reg.ByEndpoint(b.EndpointID)
			if n%2 == 0 {
				reg.Remove(b.BridgeID)
			}
		}(i, b)
	}
	wg.Wait()

	for _, b := range bridges {
		_, byEndpoint := reg.ByEndpoint(b.EndpointID)
		_, byBridge := reg.ByBridgeID(b.BridgeID)
		assert.Equal(t, byEndpoint, byBridge, "indices disagree for %s", b.BridgeID)
	}
	assert.Equal(t, 25, reg.Len())
}

func TestRegistryActivityRefresh(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(WithClock(clock.Now))
	b := newBridge()
	reg.Add(b)
	created, _ := reg.LastActivity(b.BridgeID)

	clock.Advance(time.Minute)
	reg.ByBridgeID(b.BridgeID)
	reg.Contains(b.BridgeID)
	unchanged, _ := reg.LastActivity(b.BridgeID)
	assert.Equal(t, created, unchanged)

	clock.Advance(time.Minute)
	callTime := clock.Now()
	reg.ByEndpoint(b.EndpointID)
	refreshed, _ := reg.LastActivity(b.BridgeID)
	assert.False(t, refreshed.Before(callTime))
}

func TestRegistryListInactiveSince(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(WithClock(clock.Now))

	stale := newBridge()
	reg.Add(stale)
	clock.Advance(10 * time.Minute)
	fresh := newBridge()
	reg.Add(fresh)

	inactive := reg.ListInactiveSince(clock.Now().Add(-5 * time.Minute))
	require.Len(t, inactive, 1)
	assert.Equal(t, stale.BridgeID, inactive[0].BridgeID)

	reg.ByEndpoint(stale.EndpointID)
	assert.Empty(t, reg.ListInactiveSince(clock.Now().Add(-5*time.Minute)))
}

func TestRegistryRemoveIfInactiveSince(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(WithClock(clock.Now))

	b := newBridge()
	reg.Add(b)
	clock.Advance(10 * time.Minute)
	threshold := clock.Now().Add(-5 * time.Minute)
	require.Len(t, reg.ListInactiveSince(threshold), 1)

	// used between listing and removal
	reg.ByEndpoint(b.EndpointID)
	_, removed := reg.RemoveIfInactiveSince(b.BridgeID, threshold)
	assert.False(t, removed)
	assert.True(t, reg.Contains(b.BridgeID))

	clock.Advance(10 * time.Minute)
	got, removed := reg.RemoveIfInactiveSince(b.BridgeID, clock.Now().Add(-5*time.Minute))
	require.True(t, removed)
	assert.Same(t, b, got)
	_, found := reg.ByEndpoint(b.EndpointID)
	assert.False(t, found)

	_, removed = reg.RemoveIfInactiveSince(uuid.New(), clock.Now())
	assert.False(t, removed)
}

func TestRegistrySizeObserver(t *testing.T) {
	var sizes []int
	reg := NewRegistry(WithSizeObserver(func(n int) { sizes = append(sizes, n) }))
	a, b := newBridge(), newBridge()
	reg.Add(a)
	reg.Add(b)
	reg.Remove(a.BridgeID)
	reg.Remove(a.BridgeID)
	assert.Equal(t, []int{1, 2, 1}, sizes)
}
