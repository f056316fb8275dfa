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

package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	BoundaryHTTP       = "http"
	BoundaryMQTT       = "mqtt"
	BoundaryManagement = "management"
)

type Option func(*options)

type options struct {
	metrics *metrics.Metrics
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) failed(boundary string) {
	if o.metrics != nil {
		o.metrics.AuthFailures.WithLabelValues(boundary).Inc()
	}
}

// BridgeLookup resolves the bridge behind a dynamic endpoint.
type BridgeLookup interface {
	ByEndpoint(endpointID uuid.UUID) (*core.Bridge, bool)
}

// wording of the rejections, per boundary
type messages struct {
	targetInvalid string
	missing       string
	invalid       string
	denied        string
}

var (
	httpMessages = messages{
		targetInvalid: "Request target is invalid",
		missing:       "No authorization header has been provided",
		invalid:       "Invalid authorization header",
		denied:        "Requester has no permission to use this operation",
	}
	mqttMessages = messages{
		targetInvalid: "Request topic is invalid",
		missing:       "No authorization info has been provided",
		invalid:       "Invalid authorization info",
		denied:        "Requester has no permission to use this topic",
	}
)

// BridgeAuthorizer guards the dynamic endpoints: the caller must present
// the id of the bridge behind the endpoint as its credential.
type BridgeAuthorizer struct {
	bridges BridgeLookup
	opts    options
	logger  *slog.Logger
}

func NewBridgeAuthorizer(bridges BridgeLookup, logger *slog.Logger, opts ...Option) *BridgeAuthorizer {
	return &BridgeAuthorizer{
		bridges: bridges,
		opts:    buildOptions(opts),
		logger:  logger,
	}
}

// AuthorizeHeader checks an HTTP "Authorization: Bearer <bridgeId>" value.
func (a *BridgeAuthorizer) AuthorizeHeader(endpointID, header string) error {
	err := a.authorize(endpointID, header, true, httpMessages)
	return a.result(BoundaryHTTP, err)
}

// AuthorizeToken checks the raw bridge id carried by an MQTT request.
func (a *BridgeAuthorizer) AuthorizeToken(endpointID, token string) error {
	err := a.authorize(endpointID, token, false, mqttMessages)
	return a.result(BoundaryMQTT, err)
}

func (a *BridgeAuthorizer) result(boundary string, err error) error {
	if err != nil {
		a.opts.failed(boundary)
		a.logger.Debug("dynamic call rejected", "boundary", boundary, "error", err)
	}
	return err
}

func (a *BridgeAuthorizer) authorize(endpointID, credential string, bearer bool, msg messages) error {
	id, err := uuid.Parse(strings.TrimSpace(endpointID))
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, msg.targetInvalid)
	}
	bridge, ok := a.bridges.ByEndpoint(id)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrInvalidInput, msg.targetInvalid)
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return fmt.Errorf("%w: %s", core.ErrAuth, msg.missing)
	}
	if bearer {
		if credential, ok = core.BearerToken(credential); !ok {
			return fmt.Errorf("%w: %s", core.ErrAuth, msg.invalid)
		}
	}
	presented, err := uuid.Parse(credential)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrAuth, msg.invalid)
	}
	if presented != bridge.BridgeID {
		return fmt.Errorf("%w: %s", core.ErrForbidden, msg.denied)
	}
	return nil
}
