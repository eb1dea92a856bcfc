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

package synchronizer_test

import (
	"sync"

	"github.com/plantpulse/plantpulse/pkg/encoding"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/transport"
)

// fakeConn is an in-memory transport.Connection. It records subscriptions and
// published frames and lets tests inject inbound messages and reconnects.
type fakeConn struct {
	mu         sync.Mutex
	subscribed map[string]bool
	frames     []transport.Frame
	inbound    chan transport.InboundMessage
	reconnects chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subscribed: make(map[string]bool),
		inbound:    make(chan transport.InboundMessage, 64),
		reconnects: make(chan struct{}, 1),
	}
}

func (f *fakeConn) Subscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[channel] = true
	return nil
}

func (f *fakeConn) Unsubscribe(channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, channel)
	return nil
}

func (f *fakeConn) Publish(frame transport.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) Inbound() <-chan transport.InboundMessage {
	return f.inbound
}

func (f *fakeConn) Reconnects() <-chan struct{} {
	return f.reconnects
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) isSubscribed(channel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed[channel]
}

func (f *fakeConn) publishedFrames() []transport.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]transport.Frame, len(f.frames))
	copy(result, f.frames)
	return result
}

// fullRequests decodes the published requestFull frames into their payloads.
func (f *fakeConn) fullRequests() []models.RequestFullPayload {
	var requests []models.RequestFullPayload
	for _, frame := range f.publishedFrames() {
		if frame.Event != transport.EventRequestFull {
			continue
		}
		var payload models.RequestFullPayload
		if err := encoding.DecodeFrame(frame.Payload, &payload); err == nil {
			requests = append(requests, payload)
		}
	}
	return requests
}

func (f *fakeConn) acks() []models.AckPayload {
	var acks []models.AckPayload
	for _, frame := range f.publishedFrames() {
		if frame.Event != transport.EventAck {
			continue
		}
		var payload models.AckPayload
		if err := encoding.DecodeFrame(frame.Payload, &payload); err == nil {
			acks = append(acks, payload)
		}
	}
	return acks
}

func (f *fakeConn) deliver(channel string, payload []byte) {
	f.inbound <- transport.InboundMessage{Channel: channel, Payload: payload}
}

func (f *fakeConn) reconnect() {
	f.reconnects <- struct{}{}
}
