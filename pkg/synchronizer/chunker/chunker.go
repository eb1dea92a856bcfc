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

// Package chunker reassembles envelopes whose payload was byte-split across
// multiple transport frames. Every chunk repeats the outer envelope fields
// and carries one fragment of the serialized payload; once all declared
// fragments for a messageId arrived, the logical envelope is rebuilt with a
// payload byte-identical to the unsplit original, regardless of arrival
// order.
package chunker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/plantpulse/plantpulse/pkg/metrics"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// ErrChunkMalformed marks a chunk set that can never complete (inconsistent
// totalChunks or an index outside the declared range). The caller should
// treat it like a version mismatch and request a full resync.
var ErrChunkMalformed = errors.New("malformed chunk set")

type chunkSet struct {
	template    models.Envelope
	fragments   map[int][]byte
	totalChunks int
	lastUpdated time.Time
}

// Reassembler buffers chunk fragments keyed by messageId. Incomplete sets are
// discarded after idleTTL (see Expire); session switches clear everything.
type Reassembler struct {
	mu      sync.Mutex
	sets    map[string]*chunkSet
	idleTTL time.Duration
}

func NewReassembler(idleTTL time.Duration) *Reassembler {
	return &Reassembler{
		sets:    make(map[string]*chunkSet),
		idleTTL: idleTTL,
	}
}

// Feed accepts any envelope. Unchunked envelopes pass through unchanged.
// A chunk is buffered; when it completes its set the reassembled envelope is
// returned and the buffer released. A nil envelope with nil error means
// "no message yet, wait for more chunks".
func (r *Reassembler) Feed(env *models.Envelope) (*models.Envelope, error) {
	if env.ChunkInfo == nil {
		return env, nil
	}

	info := env.ChunkInfo
	if info.TotalChunks <= 0 || info.ChunkIndex < 0 || info.ChunkIndex >= info.TotalChunks {
		return nil, fmt.Errorf("%w: index %d of %d (message %s)", ErrChunkMalformed, info.ChunkIndex, info.TotalChunks, info.MessageID)
	}

	var fragment models.ChunkFragment
	if err := safejson.Unmarshal(env.Payload, &fragment); err != nil {
		return nil, fmt.Errorf("%w: undecodable fragment (message %s): %s", ErrChunkMalformed, info.MessageID, err.Error())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[info.MessageID]
	if !ok {
		template := *env
		template.ChunkInfo = nil
		template.Payload = nil
		set = &chunkSet{
			template:    template,
			fragments:   make(map[int][]byte, info.TotalChunks),
			totalChunks: info.TotalChunks,
		}
		r.sets[info.MessageID] = set
	}

	if set.totalChunks != info.TotalChunks {
		// The set can never complete; drop it so it does not leak until expiry.
		r.dropLocked(info.MessageID)
		return nil, fmt.Errorf("%w: totalChunks changed from %d to %d (message %s)", ErrChunkMalformed, set.totalChunks, info.TotalChunks, info.MessageID)
	}

	if _, seen := set.fragments[info.ChunkIndex]; !seen {
		metrics.ChunksBuffered.Inc()
	}
	// At-least-once delivery: a redelivered fragment simply overwrites.
	set.fragments[info.ChunkIndex] = fragment.Data
	set.lastUpdated = time.Now()

	if len(set.fragments) < set.totalChunks {
		return nil, nil
	}

	var payload []byte
	for i := 0; i < set.totalChunks; i++ {
		payload = append(payload, set.fragments[i]...)
	}

	r.dropLocked(info.MessageID)
	metrics.MessagesReassembled.Inc()

	assembled := set.template
	assembled.Payload = payload

	return &assembled, nil
}

// Expire discards incomplete chunk sets that have been idle longer than the
// configured TTL and returns the channels they belonged to, so the caller can
// request a full resync as if a version mismatch had occurred.
func (r *Reassembler) Expire(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var channels []string
	for messageID, set := range r.sets {
		if now.Sub(set.lastUpdated) > r.idleTTL {
			channels = append(channels, set.template.Channel)
			r.dropLocked(messageID)
		}
	}

	return channels
}

// ResetChannel clears all buffered fragments for one channel. Called when that
// channel's cache is reset, so stale cross-session fragments are never
// reassembled.
func (r *Reassembler) ResetChannel(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for messageID, set := range r.sets {
		if set.template.Channel == channel {
			r.dropLocked(messageID)
		}
	}
}

// Reset clears every buffer. Called on session switch.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for messageID := range r.sets {
		r.dropLocked(messageID)
	}
}

// Pending returns the number of buffered chunk sets.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sets)
}

func (r *Reassembler) dropLocked(messageID string) {
	if set, ok := r.sets[messageID]; ok {
		metrics.ChunksBuffered.Sub(float64(len(set.fragments)))
		delete(r.sets, messageID)
	}
}
