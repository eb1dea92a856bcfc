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

// Package sentry wraps the sentry-go SDK behind a small reporting surface so
// the rest of the engine never has to care whether error reporting is
// configured. Without a DSN every report degrades to a plain log line.
package sentry

import (
	"os"
	"sync/atomic"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

var enabled atomic.Bool

// InitSentry initializes the sentry SDK from the SENTRY_DSN environment
// variable. Reporting stays disabled when the variable is unset.
func InitSentry(appVersion string) {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		zap.S().Infof("Sentry reporting disabled (no SENTRY_DSN)")
		return
	}

	err := sentrygo.Init(sentrygo.ClientOptions{
		Dsn:     dsn,
		Release: appVersion,
	})
	if err != nil {
		zap.S().Warnf("Failed to initialize sentry: %v", err)
		return
	}
	enabled.Store(true)
}

// Flush drains pending events; call on shutdown.
func Flush() {
	if enabled.Load() {
		sentrygo.Flush(2 * time.Second)
	}
}
