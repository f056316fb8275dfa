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
	"encoding/json"
	"net"
	"strconv"
	"strings"
)

// StringProp returns a trimmed, non-empty string property.
func StringProp(props map[string]any, key string) (string, bool) {
	v, ok := props[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// StringListProp returns a list property whose elements are all non-empty
// strings. Values decoded from JSON arrive as []any.
func StringListProp(props map[string]any, key string) ([]string, bool) {
	var out []string
	switch v := props[key].(type) {
	case []string:
		out = v
	case []any:
		out = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
	default:
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	res := make([]string, 0, len(out))
	for _, s := range out {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false
		}
		res = append(res, s)
	}
	return res, true
}

// PortProp returns a port property in the range 1..65535.
func PortProp(props map[string]any, key string) (int, bool) {
	var port int
	switch v := props[key].(type) {
	case int:
		port = v
	case int64:
		port = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		port = int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		port = int(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		port = n
	default:
		return 0, false
	}
	if port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

// IntSetting reads a positive integer setting, falling back to def.
func IntSetting(settings map[string]any, key string, def int) int {
	switch v := settings[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 && v == float64(int(v)) {
			return int(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n > 0 {
			return int(n)
		}
	}
	return def
}

// HTTPOperation resolves the method and path declared for op in an HTTP
// interface's operations map.
func HTTPOperation(props map[string]any, op string) (method, path string, ok bool) {
	ops, isMap := props[PropOperations].(map[string]any)
	if !isMap {
		return "", "", false
	}
	entry, isMap := ops[op].(map[string]any)
	if !isMap {
		return "", "", false
	}
	method, _ = StringProp(entry, PropMethod)
	path, hasPath := StringProp(entry, PropPath)
	if method == "" || !hasPath {
		return "", "", false
	}
	return strings.ToUpper(method), path, true
}

// HTTPBaseURL builds scheme://host:port<basePath> from the first access
// address of an HTTP interface. basePath may be absent.
func HTTPBaseURL(props map[string]any, secure bool) (string, bool) {
	addrs, ok := StringListProp(props, PropAccessAddresses)
	if !ok {
		return "", false
	}
	port, ok := PortProp(props, PropAccessPort)
	if !ok {
		return "", false
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	basePath, _ := StringProp(props, PropBasePath)
	return scheme + "://" + net.JoinHostPort(addrs[0], strconv.Itoa(port)) + strings.TrimSuffix(basePath, "/"), true
}
