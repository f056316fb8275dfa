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

package manager

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

// Sink delivers lifecycle reports to the translation manager over HTTP.
type Sink struct {
	name   string
	url    string
	method string
	client *http.Client
	logger *slog.Logger
}

type Option func(*Sink)

// WithTLS makes the sink trust and present what tlsCfg carries. A nil
// config keeps the default transport.
func WithTLS(tlsCfg *tls.Config) Option {
	return func(s *Sink) {
		if tlsCfg == nil {
			return
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsCfg
		s.client.Transport = transport
	}
}

func New(name, url, method string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Sink {
	if method == "" {
		method = http.MethodPost
	}
	s := &Sink{
		name:   name,
		url:    url,
		method: strings.ToUpper(method),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig builds the primary report sink from the manager section.
// It returns nil when no manager address is configured.
func FromConfig(cfg config.ManagerConfig, secure bool, logger *slog.Logger, opts ...Option) *Sink {
	if cfg.Address == "" || cfg.Port <= 0 {
		return nil
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	base := strings.TrimSuffix(cfg.BasePath, "/")
	path := "/" + strings.TrimPrefix(cfg.Path, "/")
	url := fmt.Sprintf("%s://%s%s%s", scheme, net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)), base, path)
	return New("translation-manager", url, cfg.Method, cfg.Timeout, logger, opts...)
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "manager" }

func (s *Sink) Connect(ctx context.Context) error {
	s.logger.Info("manager sink ready", "name", s.name, "url", s.url, "method", s.method)
	return nil
}

func (s *Sink) Report(ctx context.Context, r core.Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, s.method, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", core.ContentTypeJSON)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: report delivery: %v", core.ErrExternal, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: translation manager answered %d", core.ErrExternal, resp.StatusCode)
	}
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}
