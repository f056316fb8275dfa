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
	"errors"
	"net/http"
	"strings"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrAuth                 = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrAborted              = errors.New("aborted")
	ErrExternal             = errors.New("external error")
	ErrInternal             = errors.New("internal error")
	ErrUnsupportedInterface = errors.New("unsupported interface")
)

const MsgBridgeAborted = "Translation bridge is aborted"

// StatusOf maps an error to the status code reported on both the HTTP
// and the MQTT boundary.
func StatusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAborted), errors.Is(err, ErrExternal):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var sentinels = []error{
	ErrInvalidInput, ErrAuth, ErrForbidden, ErrAborted,
	ErrExternal, ErrInternal, ErrUnsupportedInterface,
}

// Message returns the detail text following the "<sentinel>: " marker of
// a classified error, or the full text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, s := range sentinels {
		if !errors.Is(err, s) {
			continue
		}
		if i := strings.Index(msg, s.Error()+": "); i >= 0 {
			return msg[i+len(s.Error())+2:]
		}
	}
	return msg
}
