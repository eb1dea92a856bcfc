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

// Package transport abstracts the long-lived bidirectional connection the
// sync engine runs over. The connection delivers opaque payloads per named
// channel, ordered and at-least-once, and notifies on reconnect so the engine
// can resubscribe and request full state.
package transport

// InboundMessage is one opaque payload received on a named channel.
type InboundMessage struct {
	Channel string
	Payload []byte
}

// Frame is one outbound event (ack, requestFull) with an encoded payload.
type Frame struct {
	Event   string
	Payload []byte
}

// Outbound event names.
const (
	EventAck         = "ack"
	EventRequestFull = "requestFull"
)

// Connection is the shared transport for all channels and sessions.
// Subscribe/Unsubscribe must match channel names exactly; a leftover handler
// from a prior session must never consume a newly-scoped message.
type Connection interface {
	Subscribe(channel string) error
	Unsubscribe(channel string) error
	Publish(frame Frame) error
	// Inbound delivers received messages in arrival order.
	Inbound() <-chan InboundMessage
	// Reconnects signals every time the connection was re-established.
	// Subscriptions survive a reconnect (the connection resubscribes itself),
	// but deltas missed during the outage cannot be assumed absent, so the
	// consumer must re-request full state for every channel.
	Reconnects() <-chan struct{}
	Close() error
}
