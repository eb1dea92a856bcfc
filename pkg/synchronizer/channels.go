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

package synchronizer

import (
	"go.uber.org/zap"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/cache"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/store"
)

// ChannelSpec registers one versioned data feed: its merge strategy (fixed at
// registration, never re-dispatched per message) and the store setter its
// materialized snapshots go to.
type ChannelSpec struct {
	Name    string
	Kind    models.ChannelKind
	Merger  cache.Merger
	Publish func(st store.Store, data models.ChannelData)
}

// DefaultChannels is the fixed registry of the plant-floor dashboard feeds.
func DefaultChannels() []ChannelSpec {
	return []ChannelSpec{
		{
			Name:   "topology",
			Kind:   models.KindTree,
			Merger: cache.TreeMerger{},
			Publish: func(st store.Store, data models.ChannelData) {
				if topology, ok := data.(*models.PlantTopology); ok {
					st.SetTopology(topology)
				} else {
					zap.S().Errorf("topology snapshot has unexpected type %T", data)
				}
			},
		},
		{
			Name:   "stoppages",
			Kind:   models.KindKeyedCollection,
			Merger: cache.KeyedMerger[models.Stoppage]{},
			Publish: func(st store.Store, data models.ChannelData) {
				if stoppages, ok := data.([]models.Stoppage); ok {
					st.SetStoppages(stoppages)
				} else {
					zap.S().Errorf("stoppages snapshot has unexpected type %T", data)
				}
			},
		},
		{
			Name:   "buffers",
			Kind:   models.KindKeyedCollection,
			Merger: cache.KeyedMerger[models.BufferState]{},
			Publish: func(st store.Store, data models.ChannelData) {
				if buffers, ok := data.([]models.BufferState); ok {
					st.SetBuffers(buffers)
				} else {
					zap.S().Errorf("buffers snapshot has unexpected type %T", data)
				}
			},
		},
		{
			Name:   "vehicles",
			Kind:   models.KindDictionary,
			Merger: cache.DictMerger[models.Vehicle]{},
			Publish: func(st store.Store, data models.ChannelData) {
				if vehicles, ok := data.(map[string]models.Vehicle); ok {
					st.SetVehicles(vehicles)
				} else {
					zap.S().Errorf("vehicles snapshot has unexpected type %T", data)
				}
			},
		},
		{
			Name:   "efficiency",
			Kind:   models.KindKeyedCollection,
			Merger: cache.KeyedMerger[models.EfficiencySample]{},
			Publish: func(st store.Store, data models.ChannelData) {
				if samples, ok := data.([]models.EfficiencySample); ok {
					st.SetEfficiency(samples)
				} else {
					zap.S().Errorf("efficiency snapshot has unexpected type %T", data)
				}
			},
		},
		{
			Name:   "reliability",
			Kind:   models.KindKeyedCollection,
			Merger: cache.KeyedMerger[models.ReliabilitySample]{},
			Publish: func(st store.Store, data models.ChannelData) {
				if samples, ok := data.([]models.ReliabilitySample); ok {
					st.SetReliability(samples)
				} else {
					zap.S().Errorf("reliability snapshot has unexpected type %T", data)
				}
			},
		},
	}
}

// DefaultLegacyChannels lists unversioned feeds forwarded to the store as-is.
func DefaultLegacyChannels() []string {
	return []string{"plantstatus"}
}
