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

package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/cache"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

func plantFixture() *models.PlantTopology {
	return &models.PlantTopology{
		Plant: "wolfsburg",
		Shops: []models.Shop{
			{
				ID:   "body",
				Name: "Body Shop",
				Lines: []models.Line{
					{
						ID:   "body-1",
						Name: "Body Line 1",
						Stations: []models.Station{
							{ID: "b1-010", State: models.StationOccupied, VehicleID: "VIN-1"},
							{ID: "b1-020", State: models.StationFree},
						},
					},
				},
			},
			{
				ID:   "paint",
				Name: "Paint Shop",
				Lines: []models.Line{
					{
						ID:       "paint-1",
						Stations: []models.Station{{ID: "p1-010", State: models.StationStopped}},
					},
				},
			},
		},
	}
}

func mergeTopology(current *models.PlantTopology, delta models.TopologyDelta) (*models.PlantTopology, error) {
	payload, err := safejson.Marshal(delta)
	Expect(err).NotTo(HaveOccurred())

	merged, err := cache.TreeMerger{}.Merge(current, payload)
	if err != nil {
		return nil, err
	}

	return merged.(*models.PlantTopology), nil
}

var _ = Describe("TreeMerger", func() {
	It("recomputes occupancy counters on materialize, ignoring wire values", func() {
		fixture := plantFixture()
		fixture.Summary = models.OccupancySummary{Occupied: 99, Free: 99, Stopped: 99}
		payload, err := safejson.Marshal(fixture)
		Expect(err).NotTo(HaveOccurred())

		data, err := cache.TreeMerger{}.Materialize(payload)
		Expect(err).NotTo(HaveOccurred())

		topology := data.(*models.PlantTopology)
		Expect(topology.Summary).To(Equal(models.OccupancySummary{Occupied: 1, Free: 1, Stopped: 1}))
	})

	It("patches a station in place and recounts", func() {
		merged, err := mergeTopology(plantFixture(), models.TopologyDelta{
			UpsertStations: []models.StationPatch{
				{
					ShopID:  "body",
					LineID:  "body-1",
					Station: models.Station{ID: "b1-020", State: models.StationOccupied, VehicleID: "VIN-2"},
				},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(merged.Shops[0].Lines[0].Stations[1].VehicleID).To(Equal("VIN-2"))
		Expect(merged.Summary).To(Equal(models.OccupancySummary{Occupied: 2, Free: 0, Stopped: 1}))
	})

	It("replaces an upserted line wholesale, children included", func() {
		merged, err := mergeTopology(plantFixture(), models.TopologyDelta{
			UpsertLines: []models.LinePatch{
				{
					ShopID: "body",
					Line: models.Line{
						ID:       "body-1",
						Name:     "Body Line 1 rebuilt",
						Stations: []models.Station{{ID: "b1-new", State: models.StationFree}},
					},
				},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(merged.Shops[0].Lines[0].Name).To(Equal("Body Line 1 rebuilt"))
		Expect(merged.Shops[0].Lines[0].Stations).To(HaveLen(1))
		Expect(merged.Summary).To(Equal(models.OccupancySummary{Occupied: 0, Free: 1, Stopped: 1}))
	})

	It("appends unknown shops and removes named ones", func() {
		merged, err := mergeTopology(plantFixture(), models.TopologyDelta{
			UpsertShops: []models.Shop{{ID: "assembly", Name: "Final Assembly"}},
			RemoveShops: []string{"paint"},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(merged.Shops).To(HaveLen(2))
		Expect(merged.Shops[0].ID).To(Equal("body"))
		Expect(merged.Shops[1].ID).To(Equal("assembly"))
	})

	It("rejects a patch referencing an unknown parent", func() {
		_, err := mergeTopology(plantFixture(), models.TopologyDelta{
			UpsertStations: []models.StationPatch{
				{ShopID: "body", LineID: "no-such-line", Station: models.Station{ID: "x"}},
			},
		})
		Expect(err).To(HaveOccurred())
	})

	It("tolerates removal of already-absent nodes", func() {
		merged, err := mergeTopology(plantFixture(), models.TopologyDelta{
			RemoveStations: []models.StationRef{{ShopID: "body", LineID: "body-1", StationID: "ghost"}},
			RemoveLines:    []models.LineRef{{ShopID: "paint", LineID: "ghost"}},
			RemoveShops:    []string{"ghost"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(merged.Shops).To(HaveLen(2))
	})

	It("never mutates the current tree", func() {
		current := plantFixture()
		current.Recount()
		before := current.Shops[0].Lines[0].Stations[1].State

		merged, err := mergeTopology(current, models.TopologyDelta{
			UpsertStations: []models.StationPatch{
				{ShopID: "body", LineID: "body-1", Station: models.Station{ID: "b1-020", State: models.StationStopped}},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(merged.Shops[0].Lines[0].Stations[1].State).To(Equal(models.StationStopped))
		Expect(current.Shops[0].Lines[0].Stations[1].State).To(Equal(before))
	})
})
