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

package config

import (
	"sync/atomic"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/retry"
)

// PollDefaults are the process-wide values that a config reload may change
// while the gateway runs.
type PollDefaults struct {
	Translation         retry.FixedDelay
	Provider            retry.FixedDelay
	InactivityThreshold time.Duration
}

// Defaults publishes the current PollDefaults to concurrent readers.
type Defaults struct {
	current atomic.Pointer[PollDefaults]
}

func NewDefaults(cfg *Config) *Defaults {
	d := &Defaults{}
	d.Update(cfg)
	return d
}

func (d *Defaults) Update(cfg *Config) {
	d.current.Store(&PollDefaults{
		Translation:         retry.NewFixedDelay(cfg.Translation.GetResultWait, cfg.Translation.GetResultTries),
		Provider:            retry.NewFixedDelay(cfg.Provider.GetResultWait, cfg.Provider.GetResultTries),
		InactivityThreshold: cfg.Sweeper.InactivityThreshold,
	})
}

func (d *Defaults) Load() PollDefaults {
	return *d.current.Load()
}

func (d *Defaults) TranslationPolicy() retry.FixedDelay {
	return d.current.Load().Translation
}

func (d *Defaults) ProviderPolicy() retry.FixedDelay {
	return d.current.Load().Provider
}

func (d *Defaults) InactivityThreshold() time.Duration {
	return d.current.Load().InactivityThreshold
}
