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

package translation

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/retry"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const abortTimeout = 5 * time.Second

// Client runs one translation task to completion against an external
// translator, polling with a fixed-delay policy and giving up when the
// owning bridge disappears.
type Client struct {
	driver Driver
	live   core.LivenessChecker
	policy func() retry.FixedDelay
	logger *slog.Logger
}

// NewClient builds a client. policy is read on every call so hot-reloaded
// defaults apply to the next translation.
func NewClient(driver Driver, live core.LivenessChecker, policy func() retry.FixedDelay, logger *slog.Logger) *Client {
	return &Client{
		driver: driver,
		live:   live,
		policy: policy,
		logger: logger,
	}
}

func (c *Client) Translate(ctx context.Context, bridgeID uuid.UUID, desc *core.TranslatorDescriptor, input []byte, settings map[string]any) ([]byte, string, error) {
	if desc == nil {
		return nil, "", fmt.Errorf("%w: translator descriptor is missing", core.ErrInternal)
	}
	if len(input) == 0 {
		return nil, "", fmt.Errorf("%w: translation input is missing", core.ErrInvalidInput)
	}

	policy := c.policy().WithOverrides(settings, core.SettingTranslatorGetResultTries, core.SettingTranslatorGetResultWait)

	taskID, err := c.driver.Init(ctx, desc, input)
	if err != nil {
		return nil, "", err
	}
	log := c.logger.With("task_id", taskID)
	log.Debug("translation task started", "from", desc.FromModelID, "to", desc.ToModelID, "tries", policy.MaxAttempts)

	for i := 0; i < policy.MaxAttempts; i++ {
		if !c.live.Contains(bridgeID) {
			c.abort(desc, taskID)
			return nil, "", fmt.Errorf("%w: %s", core.ErrAborted, core.MsgBridgeAborted)
		}

		res, err := c.driver.Result(ctx, desc, taskID)
		if err != nil {
			if ctx.Err() != nil {
				c.abort(desc, taskID)
				return nil, "", fmt.Errorf("%w: %v", core.ErrAborted, ctx.Err())
			}
			return nil, "", err
		}

		switch res.Status {
		case StatusPending, StatusInProgress:
			if err := policy.Wait(ctx, nil); err != nil {
				c.abort(desc, taskID)
				return nil, "", fmt.Errorf("%w: %v", core.ErrAborted, err)
			}
		case StatusDone:
			out, err := base64.StdEncoding.DecodeString(res.Result)
			if err != nil {
				return nil, "", fmt.Errorf("%w: translation result is not valid base64", core.ErrExternal)
			}
			log.Debug("translation task done", "attempt", i+1, "mime_type", res.MimeType)
			return out, res.MimeType, nil
		case StatusError:
			return nil, "", fmt.Errorf("%w: %s", core.ErrExternal, res.Result)
		default:
			return nil, "", fmt.Errorf("%w: unknown translation status %q", core.ErrExternal, res.Status)
		}
	}

	c.abort(desc, taskID)
	return nil, "", fmt.Errorf("%w: Data model translator did not respond in time", core.ErrExternal)
}

// abort runs detached from the caller so a cancelled request still
// releases the translator task.
func (c *Client) abort(desc *core.TranslatorDescriptor, taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	c.driver.Abort(ctx, desc, taskID)
}
