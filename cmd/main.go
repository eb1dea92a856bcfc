// Copyright 2025 PlantPulse Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plantpulse/plantpulse/pkg/config"
	"github.com/plantpulse/plantpulse/pkg/logger"
	"github.com/plantpulse/plantpulse/pkg/sentry"
	"github.com/plantpulse/plantpulse/pkg/synchronizer"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/store"
	"github.com/plantpulse/plantpulse/pkg/tools/watchdog"
	"github.com/plantpulse/plantpulse/pkg/transport"
)

var appVersion = "dev"

func main() {
	logger.Initialize()
	sentry.InitSentry(appVersion)
	defer sentry.Flush()

	log := logger.For(logger.ComponentCore)
	log.Infof("Starting plantpulse %s...", appVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to load config: %v", err)
		os.Exit(1)
	}

	dog := watchdog.NewWatchdog(ctx, time.NewTicker(10*time.Second), logger.For(logger.ComponentWatchdog))
	go dog.Start()

	conn := transport.NewWSConnection(
		ctx,
		cfg.RelayURL,
		cfg.AuthToken,
		cfg.InboundBuffer,
		cfg.Reconnect.InitialInterval.Std(),
		cfg.Reconnect.MaxInterval.Std(),
		logger.For(logger.ComponentTransport),
	)
	defer func() { _ = conn.Close() }()

	memory := store.NewMemory(5 * time.Minute)

	sync := synchronizer.New(
		ctx,
		cfg,
		conn,
		memory,
		dog,
		synchronizer.DefaultChannels(),
		synchronizer.DefaultLegacyChannels(),
		logger.For(logger.ComponentSynchronizer),
	)
	sync.Start()

	sessionID := os.Getenv("SESSION_ID")
	if sessionID == "" {
		sessionID = "default"
	}
	if err := sync.ActivateSession(sessionID); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeFatal, log, "Failed to activate session %s: %v", sessionID, err)
		os.Exit(1)
	}

	server := startDebugServer(cfg.MetricsPort, sync, conn, memory, log)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to shutdown debug server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("Received signal %s, shutting down", sig)
	cancel()
}

// startDebugServer serves prometheus metrics, a liveness probe and a
// read-only view of the per-channel sync state.
func startDebugServer(port int, sync *synchronizer.Synchronizer, conn *transport.WSConnection, memory *store.Memory, log *zap.SugaredLogger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"transport": conn.State(),
			"updatedAt": memory.UpdatedAt(),
		})
	})
	router.GET("/debug/channels", func(c *gin.Context) {
		sessionID, channels := sync.Status()
		c.JSON(http.StatusOK, gin.H{
			"sessionId": sessionID,
			"channels":  channels,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Debug server failed: %v", err)
		}
	}()

	return server
}
