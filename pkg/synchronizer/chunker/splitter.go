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

package chunker

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// Split byte-splits an envelope's payload into chunk envelopes of at most
// maxChunkSize payload bytes each. It is the sender-side counterpart of the
// Reassembler, used by the traffic simulator and the reassembly tests. An
// envelope that fits in one chunk is returned unchanged.
func Split(env *models.Envelope, maxChunkSize int) ([]*models.Envelope, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("maxChunkSize must be positive, got %d", maxChunkSize)
	}
	if len(env.Payload) <= maxChunkSize {
		return []*models.Envelope{env}, nil
	}

	totalChunks := (len(env.Payload) + maxChunkSize - 1) / maxChunkSize
	messageID := uuid.New().String()

	chunks := make([]*models.Envelope, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		start := i * maxChunkSize
		end := start + maxChunkSize
		if end > len(env.Payload) {
			end = len(env.Payload)
		}

		fragment, err := safejson.Marshal(models.ChunkFragment{Data: env.Payload[start:end]})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal chunk fragment: %w", err)
		}

		chunk := *env
		chunk.Payload = fragment
		chunk.ChunkInfo = &models.ChunkInfo{
			MessageID:   messageID,
			ChunkIndex:  i,
			TotalChunks: totalChunks,
		}
		chunks = append(chunks, &chunk)
	}

	return chunks, nil
}
