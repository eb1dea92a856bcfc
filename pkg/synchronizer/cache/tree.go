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

package cache

import (
	"encoding/json"
	"fmt"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
	"github.com/tiendc/go-deepcopy"
)

// TreeMerger merges the nested shop -> line -> station topology. Every merge
// patches a deep copy of the tree and recomputes the derived occupancy
// counters, so a topology built incrementally from deltas is
// indistinguishable from one rebuilt from a full snapshot.
type TreeMerger struct{}

func (TreeMerger) Materialize(payload json.RawMessage) (models.ChannelData, error) {
	var topology models.PlantTopology
	if err := safejson.Unmarshal(payload, &topology); err != nil {
		return nil, err
	}

	// Counters are derived state; never trust the wire copy.
	topology.Recount()

	return &topology, nil
}

func (TreeMerger) Merge(current models.ChannelData, payload json.RawMessage) (models.ChannelData, error) {
	var delta models.TopologyDelta
	if err := safejson.Unmarshal(payload, &delta); err != nil {
		return nil, err
	}

	topology, ok := current.(*models.PlantTopology)
	if !ok {
		return nil, fmt.Errorf("cached state has unexpected type %T", current)
	}

	var patched models.PlantTopology
	if err := deepcopy.Copy(&patched, topology); err != nil {
		return nil, fmt.Errorf("failed to copy topology: %w", err)
	}

	// Upserted shops and lines replace the node wholesale, children included.
	for _, shop := range delta.UpsertShops {
		if i, exists := findShop(patched.Shops, shop.ID); exists {
			patched.Shops[i] = shop
		} else {
			patched.Shops = append(patched.Shops, shop)
		}
	}

	for _, patch := range delta.UpsertLines {
		shop, exists := lookupShop(&patched, patch.ShopID)
		if !exists {
			return nil, fmt.Errorf("line patch references unknown shop %s", patch.ShopID)
		}
		if i, found := findLine(shop.Lines, patch.Line.ID); found {
			shop.Lines[i] = patch.Line
		} else {
			shop.Lines = append(shop.Lines, patch.Line)
		}
	}

	for _, patch := range delta.UpsertStations {
		line, exists := lookupLine(&patched, patch.ShopID, patch.LineID)
		if !exists {
			return nil, fmt.Errorf("station patch references unknown line %s/%s", patch.ShopID, patch.LineID)
		}
		if i, found := findStation(line.Stations, patch.Station.ID); found {
			line.Stations[i] = patch.Station
		} else {
			line.Stations = append(line.Stations, patch.Station)
		}
	}

	// Removals of already-absent nodes are no-ops, so a redelivered delta
	// patch stays harmless under at-least-once delivery.
	for _, shopID := range delta.RemoveShops {
		if i, exists := findShop(patched.Shops, shopID); exists {
			patched.Shops = append(patched.Shops[:i], patched.Shops[i+1:]...)
		}
	}

	for _, ref := range delta.RemoveLines {
		if shop, exists := lookupShop(&patched, ref.ShopID); exists {
			if i, found := findLine(shop.Lines, ref.LineID); found {
				shop.Lines = append(shop.Lines[:i], shop.Lines[i+1:]...)
			}
		}
	}

	for _, ref := range delta.RemoveStations {
		if line, exists := lookupLine(&patched, ref.ShopID, ref.LineID); exists {
			if i, found := findStation(line.Stations, ref.StationID); found {
				line.Stations = append(line.Stations[:i], line.Stations[i+1:]...)
			}
		}
	}

	patched.Recount()

	return &patched, nil
}

func findShop(shops []models.Shop, id string) (int, bool) {
	for i := range shops {
		if shops[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func lookupShop(t *models.PlantTopology, id string) (*models.Shop, bool) {
	if i, ok := findShop(t.Shops, id); ok {
		return &t.Shops[i], true
	}
	return nil, false
}

func findLine(lines []models.Line, id string) (int, bool) {
	for i := range lines {
		if lines[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func lookupLine(t *models.PlantTopology, shopID, lineID string) (*models.Line, bool) {
	shop, ok := lookupShop(t, shopID)
	if !ok {
		return nil, false
	}
	if i, found := findLine(shop.Lines, lineID); found {
		return &shop.Lines[i], true
	}
	return nil, false
}

func findStation(stations []models.Station, id string) (int, bool) {
	for i := range stations {
		if stations[i].ID == id {
			return i, true
		}
	}
	return 0, false
}
