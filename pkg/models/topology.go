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

// StationState is the momentary state of one station on the plant floor.
type StationState string

const (
	StationFree     StationState = "free"
	StationOccupied StationState = "occupied"
	StationStopped  StationState = "stopped"
)

// PlantTopology is the tree-shaped channel: shops contain lines, lines contain
// stations. Summary holds the flattened occupancy counters the dashboard
// renders; it is derived from the tree and recomputed after every patch so a
// topology rebuilt from a full snapshot and one built incrementally from
// deltas are indistinguishable to consumers.
type PlantTopology struct {
	Plant   string           `json:"plant"`
	Shops   []Shop           `json:"shops"`
	Summary OccupancySummary `json:"summary"`
}

type Shop struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Lines []Line `json:"lines"`
}

type Line struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Stations []Station `json:"stations"`
}

type Station struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	State     StationState `json:"state"`
	VehicleID string       `json:"vehicleId,omitempty"`
}

// OccupancySummary is derived from the tree, never patched directly.
type OccupancySummary struct {
	Occupied int `json:"occupied"`
	Free     int `json:"free"`
	Stopped  int `json:"stopped"`
}

// Recount walks the tree and rebuilds the occupancy counters.
func (t *PlantTopology) Recount() {
	var s OccupancySummary
	for _, shop := range t.Shops {
		for _, line := range shop.Lines {
			for _, station := range line.Stations {
				switch station.State {
				case StationOccupied:
					s.Occupied++
				case StationStopped:
					s.Stopped++
				default:
					s.Free++
				}
			}
		}
	}
	t.Summary = s
}

// TopologyDelta is the structural patch for the tree-shaped channel.
// Upserted shops and lines replace the node wholesale, children included.
// Station references must name the full path down the tree.
type TopologyDelta struct {
	UpsertShops    []Shop         `json:"upsertShops,omitempty"`
	UpsertLines    []LinePatch    `json:"upsertLines,omitempty"`
	UpsertStations []StationPatch `json:"upsertStations,omitempty"`
	RemoveShops    []string       `json:"removeShops,omitempty"`
	RemoveLines    []LineRef      `json:"removeLines,omitempty"`
	RemoveStations []StationRef   `json:"removeStations,omitempty"`
}

type LinePatch struct {
	ShopID string `json:"shopId"`
	Line   Line   `json:"line"`
}

type StationPatch struct {
	ShopID  string  `json:"shopId"`
	LineID  string  `json:"lineId"`
	Station Station `json:"station"`
}

type LineRef struct {
	ShopID string `json:"shopId"`
	LineID string `json:"lineId"`
}

type StationRef struct {
	ShopID    string `json:"shopId"`
	LineID    string `json:"lineId"`
	StationID string `json:"stationId"`
}
