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

package models

// Stoppage is one entry of the stoppage-event channel. EndedAt is zero while
// the stoppage is still running.
type Stoppage struct {
	ID        string `json:"id"`
	StationID string `json:"stationId"`
	Reason    string `json:"reason"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt,omitempty"`
	Active    bool   `json:"active"`
}

func (s Stoppage) Key() string { return s.ID }

// BufferState is the occupancy of one inter-line buffer.
type BufferState struct {
	ID       string `json:"id"`
	LineID   string `json:"lineId"`
	Capacity int    `json:"capacity"`
	Occupied int    `json:"occupied"`
}

func (b BufferState) Key() string { return b.ID }

// EfficiencySample is one OEE window for a production line.
type EfficiencySample struct {
	ID           string  `json:"id"`
	LineID       string  `json:"lineId"`
	WindowStart  int64   `json:"windowStart"`
	OEE          float64 `json:"oee"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
}

func (e EfficiencySample) Key() string { return e.ID }

// ReliabilitySample is one MTBF/MTTR window for a station.
type ReliabilitySample struct {
	ID          string  `json:"id"`
	StationID   string  `json:"stationId"`
	WindowStart int64   `json:"windowStart"`
	MTBFMinutes float64 `json:"mtbfMinutes"`
	MTTRMinutes float64 `json:"mttrMinutes"`
	Failures    int     `json:"failures"`
}

func (r ReliabilitySample) Key() string { return r.ID }

// Vehicle is one entry of the vehicle registry, keyed by VIN. The registry is
// an identity-keyed map, not an ordered list.
type Vehicle struct {
	VIN       string `json:"vin"`
	Model     string `json:"model"`
	Color     string `json:"color,omitempty"`
	StationID string `json:"stationId,omitempty"`
	Status    string `json:"status"`
	UpdatedAt int64  `json:"updatedAt"`
}
