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

package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used with For.
const (
	ComponentCore         = "Core"
	ComponentSynchronizer = "Synchronizer"
	ComponentTransport    = "Transport"
	ComponentPusher       = "Pusher"
	ComponentWatchdog     = "Watchdog"
)

var initOnce sync.Once

func level() zapcore.Level {
	switch strings.ToUpper(os.Getenv("LOGGING_LEVEL")) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Initialize sets up the global zap logger. Safe to call more than once.
func Initialize() {
	initOnce.Do(func() {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.Lock(os.Stdout),
			level(),
		)

		zap.ReplaceGlobals(zap.New(core, zap.AddCaller()))
	})
}

// For returns a named sugared logger for one component.
func For(component string) *zap.SugaredLogger {
	return zap.S().Named(component)
}
