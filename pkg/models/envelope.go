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

import "encoding/json"

// MessageType discriminates the two kinds of versioned sync messages.
type MessageType string

const (
	// Full is a complete replacement snapshot carrying an absolute version.
	Full MessageType = "full"
	// Delta is an incremental patch relative to the immediately preceding version.
	Delta MessageType = "delta"
)

// ChunkInfo is attached to an envelope whose payload was byte-split across
// multiple transport frames. ChunkIndex values for one MessageID are unique
// and dense over [0, TotalChunks).
type ChunkInfo struct {
	MessageID   string `json:"messageId"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

// Envelope is the wire-level contract for every synchronization message.
// For any channel, version numbers form a monotonically increasing sequence;
// a delta is only meaningful relative to the immediately preceding version.
type Envelope struct {
	Type        MessageType     `json:"type"`
	Channel     string          `json:"channel"`
	Version     int64           `json:"version"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   int64           `json:"timestamp"`
	ChunkInfo   *ChunkInfo      `json:"chunkInfo,omitempty"`
	RequiresAck bool            `json:"requiresAck,omitempty"`
}

// ChunkFragment is the payload of a chunked envelope. Data holds one
// byte-slice of the split logical payload; encoding/json transports it
// base64-encoded.
type ChunkFragment struct {
	Data []byte `json:"data"`
}

// AckPayload acknowledges the highest version successfully applied for a
// channel. Fire-and-forget; the sender uses it to meter further delivery.
type AckPayload struct {
	Channel string `json:"channel"`
	Version int64  `json:"version"`
}

// RequestFullPayload asks the sender to re-send a complete snapshot for one
// channel. Requests are idempotent, so repeated failures may produce repeated
// requests without harm.
type RequestFullPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Channel   string `json:"channel"`
}
