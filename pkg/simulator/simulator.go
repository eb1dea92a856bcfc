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

// Package simulator produces relay-shaped traffic for a session without a
// plant: versioned fulls and deltas per channel, optionally chunked and
// compressed exactly like real relay frames. Used to drive the engine in
// demos and to feed the reassembly path in tests.
package simulator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/plantpulse/plantpulse/pkg/encoding"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/chunker"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// Frame is one simulated transport delivery.
type Frame struct {
	Channel string
	Payload []byte
}

// Simulator tracks per-channel versions and hands out plausible plant traffic.
// Not safe for concurrent use; drive it from one goroutine.
type Simulator struct {
	rng       *rand.Rand
	versions  map[string]int64
	stoppages int
}

func New(seed int64) *Simulator {
	return &Simulator{
		rng:      rand.New(rand.NewSource(seed)),
		versions: make(map[string]int64),
	}
}

func (s *Simulator) nextVersion(channel string) int64 {
	s.versions[channel]++
	return s.versions[channel]
}

// Topology builds a full topology snapshot with the given dimensions.
func (s *Simulator) Topology(shops, linesPerShop, stationsPerLine int) *models.PlantTopology {
	topology := &models.PlantTopology{Plant: "sim-plant"}
	for i := 0; i < shops; i++ {
		shop := models.Shop{ID: fmt.Sprintf("shop-%d", i), Name: fmt.Sprintf("Shop %d", i)}
		for j := 0; j < linesPerShop; j++ {
			line := models.Line{ID: fmt.Sprintf("shop-%d-line-%d", i, j)}
			for k := 0; k < stationsPerLine; k++ {
				state := models.StationFree
				switch s.rng.Intn(3) {
				case 0:
					state = models.StationOccupied
				case 1:
					state = models.StationStopped
				}
				line.Stations = append(line.Stations, models.Station{
					ID:    fmt.Sprintf("%s-st-%03d", line.ID, k),
					State: state,
				})
			}
			shop.Lines = append(shop.Lines, line)
		}
		topology.Shops = append(topology.Shops, shop)
	}
	topology.Recount()

	return topology
}

// TopologyFull emits a full topology snapshot envelope.
func (s *Simulator) TopologyFull(shops, linesPerShop, stationsPerLine int) (*models.Envelope, error) {
	return s.envelope(models.Full, "topology", s.Topology(shops, linesPerShop, stationsPerLine))
}

// StoppageFull emits a full snapshot with n active stoppages.
func (s *Simulator) StoppageFull(n int) (*models.Envelope, error) {
	stoppages := make([]models.Stoppage, 0, n)
	for i := 0; i < n; i++ {
		s.stoppages++
		stoppages = append(stoppages, s.stoppage())
	}

	return s.envelope(models.Full, "stoppages", stoppages)
}

// StoppageDelta emits a delta that opens one stoppage and closes another.
func (s *Simulator) StoppageDelta(closeID string) (*models.Envelope, error) {
	s.stoppages++
	delta := models.KeyedDelta[models.Stoppage]{
		Upsert: []models.Stoppage{s.stoppage()},
	}
	if closeID != "" {
		delta.Remove = []string{closeID}
	}

	return s.envelope(models.Delta, "stoppages", delta)
}

func (s *Simulator) stoppage() models.Stoppage {
	reasons := []string{"jam", "material shortage", "quality hold", "robot fault"}

	return models.Stoppage{
		ID:        fmt.Sprintf("stop-%06d", s.stoppages),
		StationID: fmt.Sprintf("shop-0-line-0-st-%03d", s.rng.Intn(20)),
		Reason:    reasons[s.rng.Intn(len(reasons))],
		StartedAt: time.Now().UnixMilli(),
		Active:    true,
	}
}

func (s *Simulator) envelope(typ models.MessageType, channel string, data any) (*models.Envelope, error) {
	payload, err := safejson.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &models.Envelope{
		Type:      typ,
		Channel:   channel,
		Version:   s.nextVersion(channel),
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Frames serializes an envelope into transport deliveries for one session:
// chunked onto the companion channel when the payload exceeds maxChunkSize,
// compressed per the regular frame codec.
func (s *Simulator) Frames(sessionID string, env *models.Envelope, maxChunkSize int) ([]Frame, error) {
	chunks, err := chunker.Split(env, maxChunkSize)
	if err != nil {
		return nil, err
	}

	qualified := "session:" + sessionID + ":" + env.Channel
	frames := make([]Frame, 0, len(chunks))
	for _, chunk := range chunks {
		raw, err := encoding.EncodeFrame(chunk)
		if err != nil {
			return nil, err
		}
		channel := qualified
		if chunk.ChunkInfo != nil {
			channel += ":chunk"
		}
		frames = append(frames, Frame{Channel: channel, Payload: raw})
	}

	return frames, nil
}
