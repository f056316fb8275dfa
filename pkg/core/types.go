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

package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InterfaceTemplate string

const (
	TemplateGenericHTTP  InterfaceTemplate = "generic_http"
	TemplateGenericHTTPS InterfaceTemplate = "generic_https"
	TemplateGenericMQTT  InterfaceTemplate = "generic_mqtt"
	TemplateGenericMQTTS InterfaceTemplate = "generic_mqtts"
)

type Transport int

const (
	TransportUnknown Transport = iota
	TransportHTTP
	TransportMQTT
)

func (t Transport) String() string {
	switch t {
	case TransportHTTP:
		return "http"
	case TransportMQTT:
		return "mqtt"
	default:
		return "unknown"
	}
}

// NormalizeTemplate trims and lower-cases a template name.
func NormalizeTemplate(s string) InterfaceTemplate {
	return InterfaceTemplate(strings.ToLower(strings.TrimSpace(s)))
}

func (t InterfaceTemplate) Transport() Transport {
	switch t {
	case TemplateGenericHTTP, TemplateGenericHTTPS:
		return TransportHTTP
	case TemplateGenericMQTT, TemplateGenericMQTTS:
		return TransportMQTT
	default:
		return TransportUnknown
	}
}

func (t InterfaceTemplate) Secure() bool {
	return t == TemplateGenericHTTPS || t == TemplateGenericMQTTS
}

// Protocol returns the protocol name advertised for an input interface.
func (t InterfaceTemplate) Protocol() (string, error) {
	switch t {
	case TemplateGenericHTTP:
		return "http", nil
	case TemplateGenericHTTPS:
		return "https", nil
	case TemplateGenericMQTT:
		return "tcp", nil
	case TemplateGenericMQTTS:
		return "ssl", nil
	default:
		return "", fmt.Errorf("%w: interface %s is not supported", ErrUnsupportedInterface, t)
	}
}

// Interface property keys shared by HTTP and MQTT interface descriptors.
const (
	PropAccessAddresses = "accessAddresses"
	PropAccessPort      = "accessPort"
	PropBasePath        = "basePath"
	PropBaseTopic       = "baseTopic"
	PropOperations      = "operations"
	PropDataModels      = "dataModels"
	PropMethod          = "method"
	PropPath            = "path"
)

// Per-bridge setting keys overriding the process-wide poll defaults.
const (
	SettingTranslatorGetResultTries = "dataModelTranslatorGetResultTries"
	SettingTranslatorGetResultWait  = "dataModelTranslatorGetResultWait"
	SettingProviderGetResultTries   = "providerServiceGetResultTries"
	SettingProviderGetResultWait    = "providerServiceGetResultWait"
)

type TranslatorDescriptor struct {
	FromModelID           string         `json:"fromModelId"`
	ToModelID             string         `json:"toModelId"`
	InterfaceProperties   map[string]any `json:"interfaceProperties"`
	ConfigurationSettings map[string]any `json:"configurationSettings,omitempty"`
}

// Bridge is a negotiated translation contract. EndpointID and BridgeID
// never change after creation.
type Bridge struct {
	EndpointID                 uuid.UUID
	BridgeID                   uuid.UUID
	InputInterface             InterfaceTemplate
	InputTranslator            *TranslatorDescriptor
	ResultTranslator           *TranslatorDescriptor
	InputDataModelRequirement  string
	ResultDataModelRequirement string
	TargetInterface            InterfaceTemplate
	TargetInterfaceProperties  map[string]any
	Operation                  string
	AuthorizationToken         string
	Settings                   map[string]any
}

type InvocationResult struct {
	Status  int
	Payload []byte
}

func (r *InvocationResult) HasPayload() bool {
	return r != nil && len(r.Payload) > 0
}

type ReportState string

const (
	ReportUsed           ReportState = "USED"
	ReportExternalError  ReportState = "EXTERNAL_ERROR"
	ReportInternalError  ReportState = "INTERNAL_ERROR"
	ReportInternalClosed ReportState = "INTERNAL_CLOSED"
)

const ReportTimeLayout = "2006-01-02T15:04:05Z"

type Report struct {
	BridgeID  string      `json:"bridgeId"`
	Timestamp string      `json:"timestamp"`
	State     ReportState `json:"state"`
	Message   string      `json:"message,omitempty"`
}

func NewReport(bridgeID uuid.UUID, state ReportState, message string) Report {
	return Report{
		BridgeID:  bridgeID.String(),
		Timestamp: time.Now().UTC().Format(ReportTimeLayout),
		State:     state,
		Message:   message,
	}
}

// IsSentinel reports whether r is the empty report that stops the reporter.
func (r Report) IsSentinel() bool {
	return r.BridgeID == ""
}
