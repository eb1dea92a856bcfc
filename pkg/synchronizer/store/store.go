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

// Package store is the boundary between the sync engine and the UI layer.
// The engine's entire purpose is to shield this consumer from versioning,
// chunking and merge logic: setters receive only materialized, internally
// consistent channel data.
package store

import "github.com/plantpulse/plantpulse/pkg/models"

// Store receives materialized snapshots, one setter per channel type.
// Implementations must be safe for concurrent use; trailing-edge throttle
// publishes arrive on timer goroutines.
type Store interface {
	SetTopology(t *models.PlantTopology)
	SetStoppages(s []models.Stoppage)
	SetBuffers(b []models.BufferState)
	SetVehicles(v map[string]models.Vehicle)
	SetEfficiency(e []models.EfficiencySample)
	SetReliability(r []models.ReliabilitySample)
	// SetLegacy receives payloads of feeds that never adopted the versioned
	// protocol, forwarded unchanged.
	SetLegacy(channel string, payload []byte)
	// Reset clears every channel to its empty state. Called on session switch
	// before any new-session data can land.
	Reset()
}
