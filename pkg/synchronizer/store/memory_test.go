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

package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/store"
)

var _ = Describe("Memory", func() {
	It("stores and returns the latest snapshot per channel", func() {
		m := store.NewMemory(time.Minute)

		m.SetStoppages([]models.Stoppage{{ID: "stop-a"}})
		m.SetVehicles(map[string]models.Vehicle{"VIN-1": {VIN: "VIN-1"}})
		m.SetTopology(&models.PlantTopology{Plant: "wolfsburg"})

		Expect(m.Stoppages()).To(Equal([]models.Stoppage{{ID: "stop-a"}}))
		Expect(m.Vehicles()).To(HaveKey("VIN-1"))
		Expect(m.Topology().Plant).To(Equal("wolfsburg"))
		Expect(m.UpdatedAt()).To(BeTemporally("~", time.Now(), time.Second))
	})

	It("clears every channel on reset", func() {
		m := store.NewMemory(time.Minute)
		m.SetBuffers([]models.BufferState{{ID: "buf-1"}})
		m.SetLegacy("plantstatus", []byte(`{}`))

		m.Reset()

		Expect(m.Buffers()).To(BeNil())
		_, ok := m.Legacy("plantstatus")
		Expect(ok).To(BeFalse())
	})

	It("serves legacy entries written after a reset but never before it", func() {
		m := store.NewMemory(time.Minute)
		m.SetLegacy("plantstatus", []byte(`{"shift":"early"}`))

		m.Reset()

		_, ok := m.Legacy("plantstatus")
		Expect(ok).To(BeFalse())

		m.SetLegacy("plantstatus", []byte(`{"shift":"late"}`))
		payload, ok := m.Legacy("plantstatus")
		Expect(ok).To(BeTrue())
		Expect(payload).To(MatchJSON(`{"shift":"late"}`))
	})

	It("expires legacy entries after their TTL", func() {
		m := store.NewMemory(100 * time.Millisecond)
		m.SetLegacy("plantstatus", []byte(`{"shift":"late"}`))

		payload, ok := m.Legacy("plantstatus")
		Expect(ok).To(BeTrue())
		Expect(payload).To(MatchJSON(`{"shift":"late"}`))

		Eventually(func() bool {
			_, ok := m.Legacy("plantstatus")
			return ok
		}, "2s", "50ms").Should(BeFalse())
	})
})
