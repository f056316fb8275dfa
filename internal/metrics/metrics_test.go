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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("http", "mqtt", OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRequest("http", "mqtt", OutcomeSuccess, 30*time.Millisecond)
	m.ObserveRequest("mqtt", "http", OutcomeExt, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgeRequests.WithLabelValues("http", "mqtt", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgeRequests.WithLabelValues("mqtt", "http", OutcomeExt)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestSetBridges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetBridges(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BridgesActive))
	m.SetBridges(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgesActive))
}

func TestSeparateRegistries(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.ReportsDropped.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ReportsDropped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ReportsDropped))
}
