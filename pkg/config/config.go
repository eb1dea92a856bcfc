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

// Package config loads the sync engine configuration from a YAML file and
// fills in defaults for anything the file leaves out.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML strings like "250ms" or "2m"; a bare integer is taken
// as nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)

		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)

	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type ReconnectConfig struct {
	InitialInterval Duration `yaml:"initialInterval"`
	MaxInterval     Duration `yaml:"maxInterval"`
}

type Config struct {
	// RelayURL is the websocket endpoint of the plant-floor relay.
	RelayURL string `yaml:"relayURL"`
	// AuthToken is sent as a bearer token on the websocket handshake.
	AuthToken string `yaml:"authToken"`
	// MetricsPort serves /metrics, /healthz and /debug/channels.
	MetricsPort int `yaml:"metricsPort"`

	// ChunkIdleTTL bounds how long an incomplete chunk set may sit in the
	// reassembly buffer before it is discarded and a full resync requested.
	ChunkIdleTTL Duration `yaml:"chunkIdleTTL"`
	// ChunkCullInterval is how often expired chunk buffers are culled.
	ChunkCullInterval Duration `yaml:"chunkCullInterval"`

	// OutboundBuffer is the capacity of the outbound frame channel drained
	// by the pusher loop.
	OutboundBuffer int `yaml:"outboundBuffer"`
	// InboundBuffer is the capacity of the inbound transport channel.
	InboundBuffer int `yaml:"inboundBuffer"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Throttles holds per-channel publish intervals, keyed by the unqualified
	// channel name. Channels not listed fall back to DefaultThrottle.
	Throttles       map[string]Duration `yaml:"throttles"`
	DefaultThrottle Duration            `yaml:"defaultThrottle"`
}

func Default() Config {
	return Config{
		RelayURL:          "ws://127.0.0.1:8084/sync",
		MetricsPort:       8085,
		ChunkIdleTTL:      Duration(2 * time.Minute),
		ChunkCullInterval: Duration(30 * time.Second),
		OutboundBuffer:    100,
		InboundBuffer:     100,
		Reconnect: ReconnectConfig{
			InitialInterval: Duration(500 * time.Millisecond),
			MaxInterval:     Duration(30 * time.Second),
		},
		Throttles: map[string]Duration{
			"topology":    Duration(1 * time.Second),
			"stoppages":   Duration(250 * time.Millisecond),
			"buffers":     Duration(500 * time.Millisecond),
			"vehicles":    Duration(500 * time.Millisecond),
			"efficiency":  Duration(1 * time.Second),
			"reliability": Duration(1 * time.Second),
		},
		DefaultThrottle: Duration(500 * time.Millisecond),
	}
}

// Load reads the config file at path. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ThrottleFor returns the publish interval for an unqualified channel name.
func (c Config) ThrottleFor(channel string) time.Duration {
	if d, ok := c.Throttles[channel]; ok {
		return d.Std()
	}
	return c.DefaultThrottle.Std()
}
