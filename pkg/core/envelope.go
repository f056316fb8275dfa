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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"strings"
)

const (
	// DynamicTopicPrefix is followed by "<endpointId>/<operation>".
	DynamicTopicPrefix = "arrowhead/interface/translator/dynamic/"
	// ReplyTopicPrefix is followed by a per-process identifier.
	ReplyTopicPrefix = "arrowhead/interface/provider/response/"

	QoSExactlyOnce byte = 2
)

const (
	ContentTypeJSON  = "application/json"
	ContentTypeXML   = "application/xml"
	ContentTypeText  = "text/plain"
	ContentTypeOctet = "application/octet-stream"
)

// MQTTRequest is the envelope of a request published over MQTT, both by
// consumers calling a dynamic topic and by the gateway calling a provider.
type MQTTRequest struct {
	TraceID        string            `json:"traceId,omitempty"`
	Authentication string            `json:"authentication,omitempty"`
	ResponseTopic  string            `json:"responseTopic,omitempty"`
	QoS            int               `json:"qos"`
	Params         map[string]string `json:"params"`
	Payload        any               `json:"payload"`
}

// MQTTResponse is the envelope of a reply published over MQTT.
type MQTTResponse struct {
	Status   int    `json:"status"`
	TraceID  string `json:"traceId,omitempty"`
	Receiver string `json:"receiver,omitempty"`
	Payload  any    `json:"payload"`
}

// MediaType strips parameters such as charset from a content type.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// EncodePayload turns raw bytes into the envelope payload field: text and
// XML as strings, JSON embedded as is, anything else base64 encoded.
func EncodePayload(payload []byte, contentType string) (any, error) {
	if payload == nil {
		return nil, nil
	}
	switch MediaType(contentType) {
	case ContentTypeText, ContentTypeXML:
		return string(payload), nil
	case ContentTypeJSON:
		if !json.Valid(payload) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidInput)
		}
		return json.RawMessage(payload), nil
	default:
		return base64.StdEncoding.EncodeToString(payload), nil
	}
}

// DecodePayload turns an envelope payload field back into bytes. Strings
// are taken verbatim and any other JSON value is re-marshalled. A nil or
// empty payload yields nil.
func DecodePayload(v any) ([]byte, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case string:
		if p == "" {
			return nil, nil
		}
		return []byte(p), nil
	case json.RawMessage:
		if len(p) == 0 || string(p) == "null" {
			return nil, nil
		}
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			if s == "" {
				return nil, nil
			}
			return []byte(s), nil
		}
		return []byte(p), nil
	default:
		return json.Marshal(p)
	}
}

// ResultPayload is the inverse used on replies: JSON results are embedded,
// anything else travels as a string.
func ResultPayload(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	return string(payload)
}
