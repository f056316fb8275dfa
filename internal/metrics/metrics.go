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

// Package metrics provides Prometheus instrumentation for the interface translator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interface_translator"

// Outcome labels for bridge requests and report deliveries.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid_input"
	OutcomeAborted = "aborted"
	OutcomeExt     = "external_error"
	OutcomeInt     = "internal_error"
	OutcomeFailed  = "failed"
)

type Metrics struct {
	BridgesActive      prometheus.Gauge
	CorrelationPending prometheus.Gauge
	BridgeRequests     *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	Reports            *prometheus.CounterVec
	ReportsDropped     prometheus.Counter
	BridgesEvicted     prometheus.Counter
	AuthFailures       *prometheus.CounterVec
}

// New registers all collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		BridgesActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridges_active",
			Help:      "Number of bridges currently registered",
		}),
		CorrelationPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlation_pending",
			Help:      "Number of provider calls waiting for a correlated reply",
		}),
		BridgeRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_requests_total",
				Help:      "Dynamic calls by input transport, target transport and outcome",
			},
			[]string{"input", "target", "outcome"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bridge_request_duration_seconds",
				Help:      "Duration of dynamic calls",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"input", "target"},
		),
		Reports: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Lifecycle reports forwarded to sinks",
			},
			[]string{"state", "outcome"},
		),
		ReportsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_dropped_total",
			Help:      "Lifecycle reports dropped because the queue was full",
		}),
		BridgesEvicted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridges_evicted_total",
			Help:      "Bridges closed by the inactivity sweeper",
		}),
		AuthFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Rejected callers by boundary",
			},
			[]string{"boundary"},
		),
	}
}

// ObserveRequest records one finished dynamic call.
func (m *Metrics) ObserveRequest(input, target, outcome string, elapsed time.Duration) {
	m.BridgeRequests.WithLabelValues(input, target, outcome).Inc()
	m.RequestDuration.WithLabelValues(input, target).Observe(elapsed.Seconds())
}

// SetBridges is a registry size observer.
func (m *Metrics) SetBridges(n int) {
	m.BridgesActive.Set(float64(n))
}
