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

package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Sink appends lifecycle reports to a Redis stream. The stream is capped
// at maxLen entries (approximate trimming) when maxLen is positive.
type Sink struct {
	name     string
	addr     string
	password string
	db       int
	stream   string
	maxLen   int64
	client   *redis.Client
	logger   *slog.Logger
}

func New(name, addr, password string, db int, stream string, maxLen int64, logger *slog.Logger) *Sink {
	return &Sink{
		name:     name,
		addr:     addr,
		password: password,
		db:       db,
		stream:   stream,
		maxLen:   maxLen,
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "redis" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.addr == "" || s.stream == "" {
		return fmt.Errorf("redis sink %s: addr and stream are required", s.name)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis connection failed: %w", err)
	}
	s.client = client
	s.logger.Info("redis sink connected", "name", s.name, "addr", s.addr, "stream", s.stream)
	return nil
}

func (s *Sink) Report(ctx context.Context, r core.Report) error {
	if s.client == nil {
		return fmt.Errorf("redis sink %s: not connected", s.name)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"bridgeId":  r.BridgeID,
			"timestamp": r.Timestamp,
			"state":     string(r.State),
			"message":   r.Message,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.client.XAdd(ctx, args).Err()
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
