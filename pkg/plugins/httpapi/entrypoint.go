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

package httpapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/management"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	ManagementBasePath = "/interface/translator/bridge/mgmt"
	DynamicBasePath    = management.DynamicBasePath
)

// BridgeGuard authorizes dynamic calls.
type BridgeGuard interface {
	AuthorizeHeader(endpointID, header string) error
}

// ManagementGuard authorizes management calls.
type ManagementGuard interface {
	Authorize(peer []*x509.Certificate, authorization string) error
}

// Manager negotiates and tears down bridges.
type Manager interface {
	CheckTargets(req *management.CheckTargetsRequest) (*management.CheckTargetsResponse, error)
	InitializeBridge(ctx context.Context, req *management.InitializeBridgeRequest) (*management.InterfaceDescriptor, error)
	AbortBridge(ctx context.Context, bridgeID string) (bool, error)
}

type Deps struct {
	Executor        core.Executor
	BridgeGuard     BridgeGuard
	ManagementGuard ManagementGuard
	Manager         Manager

	// Feeds are extra management-only handlers mounted under /feed/<name>.
	Feeds map[string]http.Handler
}

// Entrypoint serves the management API and the dynamic HTTP endpoints.
type Entrypoint struct {
	name    string
	cfg     config.ServerConfig
	deps    Deps
	server  *http.Server
	handler http.Handler
	logger  *slog.Logger
}

func New(name string, cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Entrypoint {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	e := &Entrypoint{
		name:   name,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	e.handler = e.routes()
	return e
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "http" }

// Handler exposes the router, mainly for tests.
func (e *Entrypoint) Handler() http.Handler { return e.handler }

func (e *Entrypoint) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route(ManagementBasePath, func(m chi.Router) {
		m.Use(e.requireManagement)
		m.Post("/check-targets", e.handleCheckTargets)
		m.Post("/initialize-bridge", e.handleInitializeBridge)
		m.Delete("/abort-bridge/{bridgeId}", e.handleAbortBridge)
		for name, h := range e.deps.Feeds {
			m.Handle("/feed/"+name, h)
		}
	})

	r.Post(DynamicBasePath+"/{endpointId}", e.handleDynamic)
	return r
}

func (e *Entrypoint) Start(ctx context.Context) error {
	e.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", e.cfg.Port),
		Handler:           e.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if e.cfg.SSLEnabled {
		tlsCfg, err := e.tlsConfig()
		if err != nil {
			return err
		}
		e.server.TLSConfig = tlsCfg
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("http entrypoint starting", "name", e.name, "port", e.cfg.Port, "tls", e.cfg.SSLEnabled)
	var err error
	if e.cfg.SSLEnabled {
		err = e.server.ListenAndServeTLS(e.cfg.CertFile, e.cfg.KeyFile)
	} else {
		err = e.server.ListenAndServe()
	}
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// tlsConfig asks for client certificates without requiring them: only the
// management API under the certificate policy depends on one.
func (e *Entrypoint) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if e.cfg.ClientCAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(e.cfg.ClientCAFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("client CA %s holds no certificates", e.cfg.ClientCAFile)
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.VerifyClientCertIfGiven
	return cfg, nil
}
