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

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Sink publishes lifecycle reports on a NATS subject. The report state is
// appended as the last subject token so subscribers can filter by it.
type Sink struct {
	name    string
	url     string
	subject string
	conn    *nats.Conn
	logger  *slog.Logger
}

func New(name, url, subject string, logger *slog.Logger) *Sink {
	return &Sink{
		name:    name,
		url:     url,
		subject: subject,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "nats" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.url == "" || s.subject == "" {
		return fmt.Errorf("nats sink %s: url and subject are required", s.name)
	}
	conn, err := nats.Connect(s.url,
		nats.Name(s.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("nats sink disconnected", "name", s.name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			s.logger.Info("nats sink reconnected", "name", s.name)
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	s.conn = conn
	s.logger.Info("nats sink connected", "name", s.name, "subject", s.subject)
	return nil
}

// Subject returns the subject a report in the given state is published on.
func (s *Sink) Subject(state core.ReportState) string {
	return s.subject + "." + string(state)
}

func (s *Sink) Report(ctx context.Context, r core.Report) error {
	if s.conn == nil {
		return fmt.Errorf("nats sink %s: not connected", s.name)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.Subject(r.State), body)
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	return nil
}
