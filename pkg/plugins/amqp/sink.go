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

package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Azure/go-amqp"
	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Sink sends lifecycle reports to an AMQP 1.0 address.
type Sink struct {
	name    string
	url     string
	address string
	conn    *amqp.Conn
	session *amqp.Session
	sender  *amqp.Sender
	logger  *slog.Logger
}

func New(name, url, address string, logger *slog.Logger) *Sink {
	return &Sink{
		name:    name,
		url:     url,
		address: address,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "amqp" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.url == "" || s.address == "" {
		return fmt.Errorf("amqp sink %s: url and address are required", s.name)
	}
	conn, err := amqp.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	session, err := conn.NewSession(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp session: %w", err)
	}
	sender, err := session.NewSender(ctx, s.address, nil)
	if err != nil {
		session.Close(ctx)
		conn.Close()
		return fmt.Errorf("amqp sender %s: %w", s.address, err)
	}
	s.conn = conn
	s.session = session
	s.sender = sender
	s.logger.Info("amqp sink connected", "name", s.name, "address", s.address)
	return nil
}

func (s *Sink) Report(ctx context.Context, r core.Report) error {
	if s.sender == nil {
		return fmt.Errorf("amqp sink %s: not connected", s.name)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	contentType := core.ContentTypeJSON
	return s.sender.Send(ctx, &amqp.Message{
		Data: [][]byte{body},
		Properties: &amqp.MessageProperties{
			MessageID:   uuid.NewString(),
			ContentType: &contentType,
		},
		ApplicationProperties: map[string]any{"state": string(r.State)},
	}, nil)
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.sender != nil {
		s.sender.Close(ctx)
	}
	if s.session != nil {
		s.session.Close(ctx)
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
