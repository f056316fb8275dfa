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

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/auth"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/bridge"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/correlation"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/invoker"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/management"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/orchestrator"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/report"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/sweeper"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/internal/translation"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/mqtt"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/httpapi"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/manager"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/plugins/mqttapi"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/interface-translator/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	logger = newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("interface translator failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	defaults := config.NewDefaults(cfg)

	tlsCfg, err := clientTLS(cfg.Server)
	if err != nil {
		return err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg
	httpClient := &http.Client{Timeout: cfg.Provider.HTTPTimeout, Transport: transport}

	broker, err := mqtt.New(cfg.MQTT.Protocol, mqtt.Options{
		BrokerURL: cfg.BrokerURL(),
		ClientID:  cfg.System.Name + "-" + uuid.NewString()[:8],
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		TLS:       tlsCfg,
	}, logger.With("component", "mqtt"))
	if err != nil {
		return err
	}
	if err := broker.Connect(ctx); err != nil {
		return fmt.Errorf("connect mqtt broker: %w", err)
	}

	registry := bridge.NewRegistry(bridge.WithSizeObserver(m.SetBridges))
	table := correlation.NewTable()
	replyTopic := core.ReplyTopicPrefix + uuid.NewString()

	pluginRegistry := plugins.NewRegistry(logger)
	if sink := manager.FromConfig(cfg.Report.Manager, cfg.Server.SSLEnabled,
		logger.With("sink", "translation-manager"), manager.WithTLS(tlsCfg)); sink != nil {
		pluginRegistry.RegisterSink(sink)
	}
	plugins.RegisterSinks(pluginRegistry, cfg.Sinks, logger)
	connected := pluginRegistry.ConnectSinks(ctx)
	logger.Info("event sinks connected", "count", connected)

	reporter := report.New(cfg.Report.QueueSize, cfg.Report.Overflow, pluginRegistry.Sinks(),
		logger.With("component", "reporter"), report.WithMetrics(m))

	translator := translation.NewClient(
		translation.NewHTTPDriver(httpClient, cfg.Server.SSLEnabled, logger.With("component", "translator")),
		registry, defaults.TranslationPolicy, logger.With("component", "translator"),
	)
	invokers := invoker.NewSelector(
		invoker.NewHTTP(httpClient, logger.With("component", "http-invoker")),
		invoker.NewMQTT(broker, table, registry, defaults.ProviderPolicy, replyTopic,
			logger.With("component", "mqtt-invoker"),
			invoker.WithPendingObserver(func(n int) { m.CorrelationPending.Set(float64(n)) })),
	)

	// The MQTT input handler needs the orchestrator, which in turn releases
	// inputs on teardown; MQTT is filled in once the entrypoint exists.
	inputs := &management.Inputs{HTTP: management.HTTPInput{}}
	orch := orchestrator.New(registry, translator, invokers, reporter, logger.With("component", "orchestrator"),
		orchestrator.WithMetrics(m),
		orchestrator.WithTrafficLogger(logging.NewTrafficLogger(logger.With("component", "traffic"))),
		orchestrator.WithRelease(inputs),
	)

	bridgeGuard := auth.NewBridgeAuthorizer(registry, logger.With("component", "auth"), auth.WithMetrics(m))
	managementGuard, err := auth.NewManagementAuthorizer(cfg.Security, cfg.System.Name, logger.With("component", "auth"), auth.WithMetrics(m))
	if err != nil {
		return err
	}

	mqttEntrypoint := mqttapi.New("mqtt", mqttapi.Config{
		ReplyTopic: replyTopic,
		Workers:    cfg.MQTT.HandlerWorkers,
		QueueSize:  cfg.MQTT.QueueSize,
	}, broker, orch, bridgeGuard, table, logger.With("entrypoint", "mqtt"),
		mqttapi.WithPendingObserver(func(n int) { m.CorrelationPending.Set(float64(n)) }))
	inputs.MQTT = mqttEntrypoint

	service := management.NewService(registry, inputs, cfg.TargetTemplates(), management.Access{
		HTTPAddress:   cfg.System.Address,
		HTTPPort:      cfg.Server.Port,
		BrokerAddress: cfg.MQTT.BrokerAddress,
		BrokerPort:    cfg.MQTT.BrokerPort,
	}, logger.With("component", "management"))

	feeds := make(map[string]http.Handler)
	for _, sink := range pluginRegistry.Sinks() {
		if h, ok := sink.(http.Handler); ok {
			feeds[sink.Name()] = h
		}
	}
	pluginRegistry.RegisterEntrypoint(httpapi.New("http", cfg.Server, httpapi.Deps{
		Executor:        orch,
		BridgeGuard:     bridgeGuard,
		ManagementGuard: managementGuard,
		Manager:         service,
		Feeds:           feeds,
	}, logger.With("entrypoint", "http")))
	pluginRegistry.RegisterEntrypoint(mqttEntrypoint)

	sweep := sweeper.New(registry, reporter, defaults.InactivityThreshold, cfg.Sweeper.Interval,
		logger.With("component", "sweeper"), sweeper.WithRelease(inputs), sweeper.WithMetrics(m))

	go reporter.Run()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweep.Start(ctx)
	}()

	watcher := config.NewWatcher(configPath, defaults, logger)
	go watcher.Watch(ctx)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	pluginRegistry.StartEntrypoints(gctx, g)

	logger.Info("interface translator started", "config", configPath, "system", cfg.System.Name,
		"http_port", cfg.Server.Port, "broker", cfg.BrokerURL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-gctx.Done():
		logger.Error("entrypoint stopped unexpectedly")
	}

	logger.Info("shutting down interface translator")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	pluginRegistry.StopEntrypoints(shutdownCtx)
	cancel()
	entrypointErr := g.Wait()
	<-sweepDone

	if err := reporter.Stop(shutdownCtx); err != nil {
		logger.Warn("reporter did not drain", "error", err)
	}
	pluginRegistry.DisconnectSinks(shutdownCtx)
	if err := broker.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mqtt disconnect failed", "error", err)
	}
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("interface translator stopped")
	return entrypointErr
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// clientTLS is the TLS setup for outbound calls and the broker connection.
// It presents the server certificate and trusts the client CA when set.
func clientTLS(cfg config.ServerConfig) (*tls.Config, error) {
	if !cfg.SSLEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load server certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("client CA %s holds no certificates", cfg.ClientCAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}
