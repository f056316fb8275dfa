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

package management

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/bridge"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// DynamicBasePath is where provisioned HTTP input interfaces live.
const DynamicBasePath = "/interface/translator/dynamic"

// Access describes where this process accepts dynamic calls.
type Access struct {
	HTTPAddress   string
	HTTPPort      int
	BrokerAddress string
	BrokerPort    int
}

// Service negotiates bridges on behalf of the translation manager.
type Service struct {
	registry *bridge.Registry
	inputs   core.BridgeHandler
	targets  []core.InterfaceTemplate
	access   Access
	logger   *slog.Logger
}

func NewService(registry *bridge.Registry, inputs core.BridgeHandler, targets []core.InterfaceTemplate, access Access, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		inputs:   inputs,
		targets:  targets,
		access:   access,
		logger:   logger,
	}
}

// CheckTargets keeps the target interfaces this translator can invoke for
// the requested operation. Targets left without interfaces are dropped.
func (s *Service) CheckTargets(req *CheckTargetsRequest) (*CheckTargetsResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: Request is missing", core.ErrInvalidInput)
	}
	op := strings.TrimSpace(req.TargetOperation)
	if op == "" {
		return nil, fmt.Errorf("%w: Target operation is missing", core.ErrInvalidInput)
	}
	if len(req.Targets) == 0 {
		return nil, fmt.Errorf("%w: targets list is missing", core.ErrInvalidInput)
	}
	if slices.Contains(req.Targets, nil) {
		return nil, fmt.Errorf("%w: targets list contains null element", core.ErrInvalidInput)
	}

	resp := &CheckTargetsResponse{Targets: make([]Target, 0, len(req.Targets))}
	for _, t := range req.Targets {
		var kept []InterfaceDescriptor
		for _, intf := range t.Interfaces {
			template := core.NormalizeTemplate(intf.TemplateName)
			if !s.supportsTarget(template) || !invokable(template, intf.Properties, op) {
				continue
			}
			intf.TemplateName = string(template)
			kept = append(kept, intf)
		}
		if len(kept) > 0 {
			resp.Targets = append(resp.Targets, Target{InstanceID: t.InstanceID, Interfaces: kept})
		}
	}
	return resp, nil
}

func (s *Service) supportsTarget(t core.InterfaceTemplate) bool {
	return slices.Contains(s.targets, t)
}

// invokable reports whether props describe a reachable interface that
// offers op.
func invokable(t core.InterfaceTemplate, props map[string]any, op string) bool {
	if _, ok := core.StringListProp(props, core.PropAccessAddresses); !ok {
		return false
	}
	if _, ok := core.PortProp(props, core.PropAccessPort); !ok {
		return false
	}
	switch t.Transport() {
	case core.TransportMQTT:
		if _, ok := core.StringProp(props, core.PropBaseTopic); !ok {
			return false
		}
		ops, ok := core.StringListProp(props, core.PropOperations)
		return ok && slices.Contains(ops, op)
	case core.TransportHTTP:
		if _, ok := core.StringProp(props, core.PropBasePath); !ok {
			return false
		}
		_, _, ok := core.HTTPOperation(props, op)
		return ok
	default:
		return false
	}
}

// InitializeBridge validates the request, prepares the input side and
// registers the bridge. The returned descriptor tells the consumer where
// to call.
func (s *Service) InitializeBridge(ctx context.Context, req *InitializeBridgeRequest) (*InterfaceDescriptor, error) {
	b, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	if s.registry.Contains(b.BridgeID) {
		return nil, fmt.Errorf("%w: Bridge id is already in use: %s", core.ErrInvalidInput, b.BridgeID)
	}

	if err := s.inputs.InitializeBridge(ctx, b); err != nil {
		if errors.Is(err, core.ErrExternal) || errors.Is(err, core.ErrInternal) || errors.Is(err, core.ErrUnsupportedInterface) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInternal, err)
	}
	result, err := s.describe(b)
	if err != nil {
		s.inputs.AbortBridge(ctx, b)
		return nil, err
	}
	if !s.registry.AddIfAbsent(b) {
		s.inputs.AbortBridge(ctx, b)
		return nil, fmt.Errorf("%w: Bridge id is already in use: %s", core.ErrInvalidInput, b.BridgeID)
	}

	s.logger.Info("bridge initialized",
		"endpoint_id", b.EndpointID,
		"input", b.InputInterface,
		"target", b.TargetInterface,
		"operation", b.Operation,
	)
	return result, nil
}

func (s *Service) normalize(req *InitializeBridgeRequest) (*core.Bridge, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: Request is missing", core.ErrInvalidInput)
	}
	if strings.TrimSpace(req.BridgeID) == "" {
		return nil, fmt.Errorf("%w: Bridge id is missing", core.ErrInvalidInput)
	}
	bridgeID, err := uuid.Parse(strings.TrimSpace(req.BridgeID))
	if err != nil {
		return nil, fmt.Errorf("%w: Bridge id is invalid: %s", core.ErrInvalidInput, req.BridgeID)
	}
	if strings.TrimSpace(req.InputInterface) == "" {
		return nil, fmt.Errorf("%w: Input interface name is missing", core.ErrInvalidInput)
	}
	input := core.NormalizeTemplate(req.InputInterface)
	if input.Transport() == core.TransportUnknown {
		return nil, fmt.Errorf("%w: Input interface %s is not supported", core.ErrInvalidInput, input)
	}
	inTranslator, err := normalizeTranslator(req.InputDataModelTranslator)
	if err != nil {
		return nil, err
	}
	resTranslator, err := normalizeTranslator(req.ResultDataModelTranslator)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TargetInterface) == "" {
		return nil, fmt.Errorf("%w: Target interface name is missing", core.ErrInvalidInput)
	}
	target := core.NormalizeTemplate(req.TargetInterface)
	if !s.supportsTarget(target) {
		return nil, fmt.Errorf("%w: Target interface %s is not supported", core.ErrInvalidInput, target)
	}
	if len(req.TargetInterfaceProperties) == 0 {
		return nil, fmt.Errorf("%w: targetInterfaceProperties is missing", core.ErrInvalidInput)
	}
	op := strings.TrimSpace(req.Operation)
	if op == "" {
		return nil, fmt.Errorf("%w: Operation is missing", core.ErrInvalidInput)
	}

	settings := req.InterfaceTranslatorSettings
	if settings == nil {
		settings = map[string]any{}
	}
	return &core.Bridge{
		EndpointID:                 uuid.New(),
		BridgeID:                   bridgeID,
		InputInterface:             input,
		InputTranslator:            inTranslator,
		ResultTranslator:           resTranslator,
		InputDataModelRequirement:  strings.TrimSpace(req.InputDataModelRequirement),
		ResultDataModelRequirement: strings.TrimSpace(req.ResultDataModelRequirement),
		TargetInterface:            target,
		TargetInterfaceProperties:  req.TargetInterfaceProperties,
		Operation:                  op,
		AuthorizationToken:         strings.TrimSpace(req.AuthorizationToken),
		Settings:                   settings,
	}, nil
}

func normalizeTranslator(d *core.TranslatorDescriptor) (*core.TranslatorDescriptor, error) {
	if d == nil {
		return nil, nil
	}
	from := strings.TrimSpace(d.FromModelID)
	if from == "" {
		return nil, fmt.Errorf("%w: fromModelId is missing", core.ErrInvalidInput)
	}
	to := strings.TrimSpace(d.ToModelID)
	if to == "" {
		return nil, fmt.Errorf("%w: toModelId is missing", core.ErrInvalidInput)
	}
	if len(d.InterfaceProperties) == 0 {
		return nil, fmt.Errorf("%w: interfaceProperties is missing", core.ErrInvalidInput)
	}
	settings := d.ConfigurationSettings
	if settings == nil {
		settings = map[string]any{}
	}
	return &core.TranslatorDescriptor{
		FromModelID:           from,
		ToModelID:             to,
		InterfaceProperties:   d.InterfaceProperties,
		ConfigurationSettings: settings,
	}, nil
}

// describe builds the input interface descriptor handed back to the
// translation manager.
func (s *Service) describe(b *core.Bridge) (*InterfaceDescriptor, error) {
	protocol, err := b.InputInterface.Protocol()
	if err != nil {
		return nil, err
	}

	props := map[string]any{}
	switch b.InputInterface.Transport() {
	case core.TransportHTTP:
		props[core.PropAccessAddresses] = []string{s.access.HTTPAddress}
		props[core.PropAccessPort] = s.access.HTTPPort
		props[core.PropBasePath] = DynamicBasePath
		props[core.PropOperations] = map[string]any{
			b.Operation: map[string]any{
				core.PropMethod: http.MethodPost,
				core.PropPath:   "/" + b.EndpointID.String(),
			},
		}
	case core.TransportMQTT:
		props[core.PropAccessAddresses] = []string{s.access.BrokerAddress}
		props[core.PropAccessPort] = s.access.BrokerPort
		props[core.PropBaseTopic] = core.DynamicTopicPrefix + b.EndpointID.String() + "/"
		props[core.PropOperations] = []string{b.Operation}
	}

	if b.InputDataModelRequirement != "" || b.ResultDataModelRequirement != "" {
		models := map[string]any{}
		if b.InputDataModelRequirement != "" {
			models["input"] = b.InputDataModelRequirement
		}
		if b.ResultDataModelRequirement != "" {
			models["output"] = b.ResultDataModelRequirement
		}
		props[core.PropDataModels] = map[string]any{b.Operation: models}
	}

	return &InterfaceDescriptor{
		TemplateName: string(b.InputInterface),
		Protocol:     protocol,
		Policy:       PolicyBridgeToken,
		Properties:   props,
	}, nil
}

// AbortBridge removes the bridge and releases its input side. It reports
// whether the bridge was active.
func (s *Service) AbortBridge(ctx context.Context, rawID string) (bool, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return false, fmt.Errorf("%w: Bridge identifier is missing", core.ErrInvalidInput)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return false, fmt.Errorf("%w: Bridge identifier is invalid", core.ErrInvalidInput)
	}
	b, ok := s.registry.Remove(id)
	if !ok {
		return false, nil
	}
	s.inputs.AbortBridge(ctx, b)
	s.logger.Info("bridge aborted", "endpoint_id", b.EndpointID)
	return true, nil
}
