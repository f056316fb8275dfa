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
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"github.com/xeipuuv/gojsonschema"
)

// PolicyBridgeToken is the access policy advertised for every provisioned
// input interface: callers authenticate with the bridge id.
const PolicyBridgeToken = "TRANSLATION_BRIDGE_TOKEN_AUTH"

type InterfaceDescriptor struct {
	TemplateName string         `json:"templateName"`
	Protocol     string         `json:"protocol,omitempty"`
	Policy       string         `json:"policy,omitempty"`
	Properties   map[string]any `json:"properties"`
}

type Target struct {
	InstanceID string                `json:"instanceId"`
	Interfaces []InterfaceDescriptor `json:"interfaces"`
}

type CheckTargetsRequest struct {
	TargetOperation string    `json:"targetOperation"`
	Targets         []*Target `json:"targets"`
}

type CheckTargetsResponse struct {
	Targets []Target `json:"targets"`
}

type InitializeBridgeRequest struct {
	BridgeID                    string                     `json:"bridgeId"`
	InputInterface              string                     `json:"inputInterface"`
	InputDataModelTranslator    *core.TranslatorDescriptor `json:"inputDataModelTranslator,omitempty"`
	ResultDataModelTranslator   *core.TranslatorDescriptor `json:"resultDataModelTranslator,omitempty"`
	InputDataModelRequirement   string                     `json:"inputDataModelRequirement,omitempty"`
	ResultDataModelRequirement  string                     `json:"resultDataModelRequirement,omitempty"`
	TargetInterface             string                     `json:"targetInterface"`
	TargetInterfaceProperties   map[string]any             `json:"targetInterfaceProperties"`
	Operation                   string                     `json:"operation"`
	AuthorizationToken          string                     `json:"authorizationToken,omitempty"`
	InterfaceTranslatorSettings map[string]any             `json:"interfaceTranslatorSettings,omitempty"`
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	checkTargetsSchema     = mustSchema("schemas/check-targets.json")
	initializeBridgeSchema = mustSchema("schemas/initialize-bridge.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return schema
}

// DecodeCheckTargets validates the request body against its schema and
// decodes it.
func DecodeCheckTargets(body []byte) (*CheckTargetsRequest, error) {
	var req CheckTargetsRequest
	if err := decode(checkTargetsSchema, body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// DecodeInitializeBridge validates the request body against its schema and
// decodes it.
func DecodeInitializeBridge(body []byte) (*InitializeBridgeRequest, error) {
	var req InitializeBridgeRequest
	if err := decode(initializeBridgeSchema, body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decode(schema *gojsonschema.Schema, body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return fmt.Errorf("%w: Request is missing", core.ErrInvalidInput)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: Request is not valid JSON", core.ErrInvalidInput)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.Field()+": "+desc.Description())
		}
		return fmt.Errorf("%w: Request is invalid: %s", core.ErrInvalidInput, strings.Join(problems, "; "))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: Request is invalid: %v", core.ErrInvalidInput, err)
	}
	return nil
}
