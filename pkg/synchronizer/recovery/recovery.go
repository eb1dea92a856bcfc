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

// Package recovery turns apply failures into full-state re-requests and
// acknowledges applied messages that ask for it. Both signals are
// fire-and-forget frames on the outbound channel; the stale cache stays in
// place for continued read access until a new full arrives.
package recovery

import (
	"github.com/plantpulse/plantpulse/pkg/encoding"
	"github.com/plantpulse/plantpulse/pkg/metrics"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/transport"
	"go.uber.org/zap"
)

// Controller issues requestFull frames. Requests are idempotent on the sender
// side, so repeated failures may produce repeated requests; no backoff is
// applied at this layer.
type Controller struct {
	outbound chan<- transport.Frame
	log      *zap.SugaredLogger
}

func NewController(outbound chan<- transport.Frame, log *zap.SugaredLogger) *Controller {
	return &Controller{outbound: outbound, log: log}
}

// RequestFull asks the sender to re-send a complete snapshot for one channel.
// An empty sessionID takes the legacy unscoped path (bare channel name).
func (c *Controller) RequestFull(sessionID, channel string) {
	payload, err := encoding.EncodeFrame(models.RequestFullPayload{
		SessionID: sessionID,
		Channel:   channel,
	})
	if err != nil {
		c.log.Errorf("Failed to encode requestFull for %s: %v", channel, err)
		return
	}

	metrics.FullRequests.WithLabelValues(channel).Inc()
	send(c.outbound, transport.Frame{Event: transport.EventRequestFull, Payload: payload}, c.log)
}

// AckEmitter acknowledges the highest version successfully applied for a
// channel. This is the sole backpressure signal available to the sender; the
// client neither rate-limits its acknowledgments nor refuses to apply
// messages.
type AckEmitter struct {
	outbound chan<- transport.Frame
	log      *zap.SugaredLogger
}

func NewAckEmitter(outbound chan<- transport.Frame, log *zap.SugaredLogger) *AckEmitter {
	return &AckEmitter{outbound: outbound, log: log}
}

// Ack emits {channel, version} for an applied message whose envelope
// requested acknowledgment.
func (a *AckEmitter) Ack(channel string, version int64) {
	payload, err := encoding.EncodeFrame(models.AckPayload{
		Channel: channel,
		Version: version,
	})
	if err != nil {
		a.log.Errorf("Failed to encode ack for %s v%d: %v", channel, version, err)
		return
	}

	metrics.AcksSent.WithLabelValues(channel).Inc()
	send(a.outbound, transport.Frame{Event: transport.EventAck, Payload: payload}, a.log)
}

func send(outbound chan<- transport.Frame, frame transport.Frame, log *zap.SugaredLogger) {
	select {
	case outbound <- frame:
	default:
		log.Warnf("Outbound frame channel is full, dropping %s frame", frame.Event)
	}
}
