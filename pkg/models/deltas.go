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

// ChannelKind selects the merge strategy for a channel. It is fixed at
// channel-registration time, never re-dispatched per message.
type ChannelKind string

const (
	// KindTree is the nested shop -> line -> station topology channel.
	KindTree ChannelKind = "tree"
	// KindKeyedCollection is an ordered collection of records with a stable
	// identity key (stoppages, buffers, efficiency, reliability).
	KindKeyedCollection ChannelKind = "keyedCollection"
	// KindDictionary is an identity-keyed map (vehicle registry).
	KindDictionary ChannelKind = "dictionary"
)

// ChannelData is the materialized, channel-type-specific state handed to the
// external store. Consumers never see raw envelopes, versions or chunks.
type ChannelData any

// Keyed is implemented by every record type of a keyed-collection channel.
type Keyed interface {
	Key() string
}

// KeyedDelta is the patch for a keyed-collection channel: upserts by identity
// (last-write-wins) plus a set of removed identities.
type KeyedDelta[T Keyed] struct {
	Upsert []T      `json:"upsert,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// DictDelta is the patch for a dictionary channel.
type DictDelta[T any] struct {
	Upsert map[string]T `json:"upsert,omitempty"`
	Remove []string     `json:"remove,omitempty"`
}
