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
)

// Merger is the channel-kind-specific apply logic, selected once at channel
// registration. Implementations never mutate the current state: they build
// the merged result on a copy and return it, which is what makes Apply
// all-or-nothing.
type Merger interface {
	// Materialize decodes a full snapshot payload.
	Materialize(payload json.RawMessage) (models.ChannelData, error)
	// Merge applies a delta payload on top of the current state.
	Merge(current models.ChannelData, payload json.RawMessage) (models.ChannelData, error)
}

// KeyedMerger merges ordered collections of identity-keyed records. Upserts
// are last-write-wins by key; the merged collection keeps insertion order
// (updated records stay in place, new records append), it is never re-sorted.
type KeyedMerger[T models.Keyed] struct{}

func (KeyedMerger[T]) Materialize(payload json.RawMessage) (models.ChannelData, error) {
	var records []T
	if err := safejson.Unmarshal(payload, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func (KeyedMerger[T]) Merge(current models.ChannelData, payload json.RawMessage) (models.ChannelData, error) {
	var delta models.KeyedDelta[T]
	if err := safejson.Unmarshal(payload, &delta); err != nil {
		return nil, err
	}

	records, ok := current.([]T)
	if !ok {
		return nil, fmt.Errorf("cached state has unexpected type %T", current)
	}

	for _, record := range delta.Upsert {
		if record.Key() == "" {
			return nil, fmt.Errorf("upserted record has empty identity key")
		}
	}

	index := make(map[string]int, len(records))
	merged := make([]T, len(records))
	copy(merged, records)
	for i, record := range merged {
		index[record.Key()] = i
	}

	for _, record := range delta.Upsert {
		if i, exists := index[record.Key()]; exists {
			merged[i] = record
		} else {
			index[record.Key()] = len(merged)
			merged = append(merged, record)
		}
	}

	if len(delta.Remove) == 0 {
		return merged, nil
	}

	removed := make(map[string]bool, len(delta.Remove))
	for _, key := range delta.Remove {
		removed[key] = true
	}

	kept := merged[:0:0]
	for _, record := range merged {
		if !removed[record.Key()] {
			kept = append(kept, record)
		}
	}

	return kept, nil
}

// DictMerger merges identity-keyed maps (the vehicle registry).
type DictMerger[T any] struct{}

func (DictMerger[T]) Materialize(payload json.RawMessage) (models.ChannelData, error) {
	var entries map[string]T
	if err := safejson.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make(map[string]T)
	}

	return entries, nil
}

func (DictMerger[T]) Merge(current models.ChannelData, payload json.RawMessage) (models.ChannelData, error) {
	var delta models.DictDelta[T]
	if err := safejson.Unmarshal(payload, &delta); err != nil {
		return nil, err
	}

	entries, ok := current.(map[string]T)
	if !ok {
		return nil, fmt.Errorf("cached state has unexpected type %T", current)
	}

	merged := make(map[string]T, len(entries)+len(delta.Upsert))
	for key, value := range entries {
		merged[key] = value
	}
	for key, value := range delta.Upsert {
		merged[key] = value
	}
	for _, key := range delta.Remove {
		delete(merged, key)
	}

	return merged, nil
}
