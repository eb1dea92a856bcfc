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

package chunker_test

import (
	"bytes"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/chunker"
)

func largeEnvelope(channel string, version int64, size int) *models.Envelope {
	payload := bytes.Repeat([]byte(`x`), size-2)
	return &models.Envelope{
		Type:    models.Full,
		Channel: channel,
		Version: version,
		Payload: json.RawMessage(`"` + string(payload) + `"`),
	}
}

var _ = Describe("Reassembler", func() {
	var r *chunker.Reassembler

	BeforeEach(func() {
		r = chunker.NewReassembler(2 * time.Minute)
	})

	It("passes unchunked envelopes through unchanged", func() {
		env := &models.Envelope{Type: models.Delta, Channel: "vehicles", Version: 7, Payload: json.RawMessage(`{}`)}

		out, err := r.Feed(env)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeIdenticalTo(env))
		Expect(r.Pending()).To(BeZero())
	})

	It("reassembles a payload byte-identical to the original, in order", func() {
		original := largeEnvelope("topology", 12, 1000)
		chunks, err := chunker.Split(original, 300)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(chunks)).To(BeNumerically(">", 1))

		var out *models.Envelope
		for _, chunk := range chunks {
			out, err = r.Feed(chunk)
			Expect(err).NotTo(HaveOccurred())
		}

		Expect(out).NotTo(BeNil())
		Expect(out.Payload).To(Equal(original.Payload))
		Expect(out.Type).To(Equal(models.Full))
		Expect(out.Channel).To(Equal("topology"))
		Expect(out.Version).To(Equal(int64(12)))
		Expect(out.ChunkInfo).To(BeNil())
		Expect(r.Pending()).To(BeZero())
	})

	It("reassembles regardless of arrival order", func() {
		original := largeEnvelope("topology", 3, 900)
		chunks, err := chunker.Split(original, 200)
		Expect(err).NotTo(HaveOccurred())

		// Reverse order, with a duplicate in the middle.
		var out *models.Envelope
		for i := len(chunks) - 1; i >= 0; i-- {
			out, err = r.Feed(chunks[i])
			Expect(err).NotTo(HaveOccurred())
			if i == 2 {
				_, err = r.Feed(chunks[i])
				Expect(err).NotTo(HaveOccurred())
			}
		}

		Expect(out).NotTo(BeNil())
		Expect(out.Payload).To(Equal(original.Payload))
	})

	It("keeps concurrent chunk sets apart by messageId", func() {
		first := largeEnvelope("topology", 4, 600)
		second := largeEnvelope("topology", 5, 600)
		firstChunks, err := chunker.Split(first, 200)
		Expect(err).NotTo(HaveOccurred())
		secondChunks, err := chunker.Split(second, 200)
		Expect(err).NotTo(HaveOccurred())

		// Interleave the two sets.
		for i := range firstChunks {
			_, err = r.Feed(secondChunks[i])
			Expect(err).NotTo(HaveOccurred())
			out, err := r.Feed(firstChunks[i])
			Expect(err).NotTo(HaveOccurred())
			if i == len(firstChunks)-1 {
				Expect(out).NotTo(BeNil())
				Expect(out.Version).To(Equal(int64(4)))
			}
		}
		Expect(r.Pending()).To(BeZero())
	})

	It("rejects a chunk with an out-of-range index", func() {
		env := &models.Envelope{
			Type:    models.Full,
			Channel: "topology",
			Version: 1,
			Payload: json.RawMessage(`{"data":"YQ=="}`),
			ChunkInfo: &models.ChunkInfo{
				MessageID:   "msg-1",
				ChunkIndex:  3,
				TotalChunks: 3,
			},
		}

		_, err := r.Feed(env)
		Expect(err).To(MatchError(chunker.ErrChunkMalformed))
	})

	It("drops a set whose totalChunks changes midway", func() {
		first := &models.Envelope{
			Type:      models.Full,
			Channel:   "topology",
			Version:   1,
			Payload:   json.RawMessage(`{"data":"YQ=="}`),
			ChunkInfo: &models.ChunkInfo{MessageID: "msg-2", ChunkIndex: 0, TotalChunks: 3},
		}
		out, err := r.Feed(first)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeNil())

		second := &models.Envelope{
			Type:      models.Full,
			Channel:   "topology",
			Version:   1,
			Payload:   json.RawMessage(`{"data":"Yg=="}`),
			ChunkInfo: &models.ChunkInfo{MessageID: "msg-2", ChunkIndex: 1, TotalChunks: 4},
		}
		_, err = r.Feed(second)
		Expect(err).To(MatchError(chunker.ErrChunkMalformed))
		Expect(r.Pending()).To(BeZero())
	})

	Describe("expiry", func() {
		It("discards idle incomplete sets and names their channels", func() {
			chunks, err := chunker.Split(largeEnvelope("stoppages", 2, 600), 200)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Feed(chunks[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Pending()).To(Equal(1))

			Expect(r.Expire(time.Now())).To(BeEmpty())

			channels := r.Expire(time.Now().Add(3 * time.Minute))
			Expect(channels).To(Equal([]string{"stoppages"}))
			Expect(r.Pending()).To(BeZero())
		})
	})

	Describe("reset", func() {
		It("clears all buffered fragments on session switch", func() {
			chunks, err := chunker.Split(largeEnvelope("topology", 2, 600), 200)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Feed(chunks[0])
			Expect(err).NotTo(HaveOccurred())

			r.Reset()
			Expect(r.Pending()).To(BeZero())

			// The remaining fragments of the dropped set restart a fresh set
			// that can never complete before expiry; they must not panic.
			_, err = r.Feed(chunks[1])
			Expect(err).NotTo(HaveOccurred())
		})

		It("clears only the named channel", func() {
			topoChunks, err := chunker.Split(largeEnvelope("topology", 2, 600), 200)
			Expect(err).NotTo(HaveOccurred())
			stopChunks, err := chunker.Split(largeEnvelope("stoppages", 2, 600), 200)
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Feed(topoChunks[0])
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Feed(stopChunks[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Pending()).To(Equal(2))

			r.ResetChannel("topology")
			Expect(r.Pending()).To(Equal(1))
		})
	})
})
