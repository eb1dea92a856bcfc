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

package recovery_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/plantpulse/plantpulse/pkg/encoding"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/recovery"
	"github.com/plantpulse/plantpulse/pkg/transport"
)

var _ = Describe("Controller", func() {
	It("emits a requestFull frame with session scope", func() {
		outbound := make(chan transport.Frame, 4)
		c := recovery.NewController(outbound, zap.S())

		c.RequestFull("sess-1", "topology")

		var frame transport.Frame
		Expect(outbound).To(Receive(&frame))
		Expect(frame.Event).To(Equal(transport.EventRequestFull))

		var payload models.RequestFullPayload
		Expect(encoding.DecodeFrame(frame.Payload, &payload)).To(Succeed())
		Expect(payload).To(Equal(models.RequestFullPayload{SessionID: "sess-1", Channel: "topology"}))
	})

	It("drops the frame instead of blocking when the outbound channel is full", func() {
		outbound := make(chan transport.Frame, 1)
		c := recovery.NewController(outbound, zap.S())

		c.RequestFull("sess-1", "topology")
		// Must return immediately despite the full channel.
		c.RequestFull("sess-1", "stoppages")

		Expect(outbound).To(HaveLen(1))
	})
})

var _ = Describe("AckEmitter", func() {
	It("emits the applied version for the wire channel name", func() {
		outbound := make(chan transport.Frame, 4)
		a := recovery.NewAckEmitter(outbound, zap.S())

		a.Ack("session:sess-1:stoppages", 42)

		var frame transport.Frame
		Expect(outbound).To(Receive(&frame))
		Expect(frame.Event).To(Equal(transport.EventAck))

		var payload models.AckPayload
		Expect(encoding.DecodeFrame(frame.Payload, &payload)).To(Succeed())
		Expect(payload).To(Equal(models.AckPayload{Channel: "session:sess-1:stoppages", Version: 42}))
	})
})
