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

package retry

import (
	"context"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// FixedDelay bounds a poll loop to MaxAttempts iterations separated by
// Delay. The budget is an attempt count, not a wall-clock deadline.
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

func NewFixedDelay(delay time.Duration, maxAttempts int) FixedDelay {
	return FixedDelay{Delay: delay, MaxAttempts: maxAttempts}
}

// WithOverrides applies per-bridge settings. attemptsKey holds a positive
// integer, delayKey a positive number of milliseconds.
func (p FixedDelay) WithOverrides(settings map[string]any, attemptsKey, delayKey string) FixedDelay {
	if len(settings) == 0 {
		return p
	}
	p.MaxAttempts = core.IntSetting(settings, attemptsKey, p.MaxAttempts)
	if ms := core.IntSetting(settings, delayKey, 0); ms > 0 {
		p.Delay = time.Duration(ms) * time.Millisecond
	}
	return p
}

// Wait sleeps for Delay. It returns early without error when wake is
// closed, and with ctx.Err() when ctx ends first. A nil wake never fires.
func (p FixedDelay) Wait(ctx context.Context, wake <-chan struct{}) error {
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
