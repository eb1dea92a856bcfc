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

package store

import (
	"sync"
	"time"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
)

// legacyEntry tags a legacy payload with the session epoch it was written in.
// Entries of a torn-down session stay in the map until their TTL culls them,
// but readers never see them because the epoch no longer matches.
type legacyEntry struct {
	payload []byte
	epoch   uint64
}

// Memory is the in-memory store the dashboard reads from. Legacy feed entries
// carry a TTL so a feed that went silent stops being reported as current.
type Memory struct {
	mu          sync.RWMutex
	topology    *models.PlantTopology
	stoppages   []models.Stoppage
	buffers     []models.BufferState
	vehicles    map[string]models.Vehicle
	efficiency  []models.EfficiencySample
	reliability []models.ReliabilitySample
	legacy      *expiremap.ExpireMap[string, legacyEntry]
	epoch       uint64
	updatedAt   time.Time
}

func NewMemory(legacyTTL time.Duration) *Memory {
	return &Memory{
		legacy: expiremap.NewEx[string, legacyEntry](legacyTTL/2, legacyTTL),
	}
}

func (m *Memory) SetTopology(t *models.PlantTopology) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topology = t
	m.updatedAt = time.Now()
}

func (m *Memory) SetStoppages(s []models.Stoppage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stoppages = s
	m.updatedAt = time.Now()
}

func (m *Memory) SetBuffers(b []models.BufferState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = b
	m.updatedAt = time.Now()
}

func (m *Memory) SetVehicles(v map[string]models.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles = v
	m.updatedAt = time.Now()
}

func (m *Memory) SetEfficiency(e []models.EfficiencySample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.efficiency = e
	m.updatedAt = time.Now()
}

func (m *Memory) SetReliability(r []models.ReliabilitySample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reliability = r
	m.updatedAt = time.Now()
}

func (m *Memory) SetLegacy(channel string, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legacy.Set(channel, legacyEntry{payload: payload, epoch: m.epoch})
}

// Reset clears every channel. Bumping the epoch invalidates all legacy
// entries at once; the expiremap and its culler are created exactly once per
// process and survive session switches.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topology = nil
	m.stoppages = nil
	m.buffers = nil
	m.vehicles = nil
	m.efficiency = nil
	m.reliability = nil
	m.epoch++
	m.updatedAt = time.Now()
}

// Readers. Returned values are the published snapshots; the engine never
// mutates a snapshot after publishing it, so they are safe to render from.

func (m *Memory) Topology() *models.PlantTopology {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topology
}

func (m *Memory) Stoppages() []models.Stoppage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stoppages
}

func (m *Memory) Buffers() []models.BufferState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.buffers
}

func (m *Memory) Vehicles() map[string]models.Vehicle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles
}

func (m *Memory) Efficiency() []models.EfficiencySample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.efficiency
}

func (m *Memory) Reliability() []models.ReliabilitySample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reliability
}

func (m *Memory) Legacy(channel string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry, ok := m.legacy.Load(channel); ok && entry.epoch == m.epoch {
		return entry.payload, true
	}
	return nil, false
}

func (m *Memory) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}
