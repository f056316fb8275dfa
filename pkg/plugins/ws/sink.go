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

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Sink is a live feed of lifecycle reports. It is mounted as an HTTP
// handler behind management authorization; every connected client gets a
// copy of each report. Slow clients lose reports instead of stalling the
// reporter.
type Sink struct {
	name     string
	upgrader websocket.Upgrader
	clients  sync.Map
	count    atomic.Int64
	closed   atomic.Bool
	logger   *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func New(name string, logger *slog.Logger) *Sink {
	return &Sink{
		name: name,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "websocket" }

func (s *Sink) Connect(ctx context.Context) error {
	s.logger.Info("websocket sink ready", "name", s.name)
	return nil
}

// Clients returns the number of connected feed clients.
func (s *Sink) Clients() int { return int(s.count.Load()) }

func (s *Sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	s.clients.Store(c, struct{}{})
	s.count.Add(1)
	s.logger.Info("report feed client connected", "remote", r.RemoteAddr)

	defer func() {
		s.clients.Delete(c)
		s.count.Add(-1)
		c.close()
		s.logger.Info("report feed client disconnected", "remote", r.RemoteAddr)
	}()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop drains control frames until the peer goes away.
func (s *Sink) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("ws read error", "error", err)
			}
			return
		}
	}
}

func (s *Sink) writeLoop(c *client) {
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write failed", "error", err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Sink) Report(ctx context.Context, r core.Report) error {
	if s.closed.Load() {
		return nil
	}
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.clients.Range(func(key, _ any) bool {
		c := key.(*client)
		select {
		case c.send <- body:
		case <-c.done:
		default:
			s.logger.Warn("report feed client too slow, dropping report", "state", r.State)
		}
		return true
	})
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.closed.Store(true)
	s.clients.Range(func(key, _ any) bool {
		c := key.(*client)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), deadline)
		c.close()
		return true
	})
	return nil
}
