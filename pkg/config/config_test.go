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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/plantpulse/plantpulse/pkg/config"
)

var _ = Describe("Load", func() {
	It("returns defaults when the file does not exist", func() {
		cfg, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.Default()))
	})

	It("overrides defaults with file values and keeps the rest", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(`
relayURL: wss://relay.plant.example/sync
metricsPort: 9100
chunkIdleTTL: 45s
throttles:
  stoppages: 100ms
`), 0o600)).To(Succeed())

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RelayURL).To(Equal("wss://relay.plant.example/sync"))
		Expect(cfg.MetricsPort).To(Equal(9100))
		Expect(cfg.ChunkIdleTTL.Std()).To(Equal(45 * time.Second))
		Expect(cfg.ThrottleFor("stoppages")).To(Equal(100 * time.Millisecond))
		// Untouched defaults survive.
		Expect(cfg.OutboundBuffer).To(Equal(config.Default().OutboundBuffer))
	})

	It("fails on malformed YAML", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte("relayURL: [unclosed"), 0o600)).To(Succeed())

		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ThrottleFor", func() {
	It("falls back to the default interval for unlisted channels", func() {
		cfg := config.Default()
		Expect(cfg.ThrottleFor("no-such-channel")).To(Equal(time.Duration(cfg.DefaultThrottle)))
		Expect(cfg.ThrottleFor("stoppages")).To(Equal(250 * time.Millisecond))
	})
})
