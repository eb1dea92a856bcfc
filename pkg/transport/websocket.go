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

package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/plantpulse/plantpulse/pkg/tools"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// Connection lifecycle states and events.
const (
	stateDisconnected = "disconnected"
	stateConnecting   = "connecting"
	stateConnected    = "connected"
	stateClosed       = "closed"

	eventDial        = "dial"
	eventEstablished = "established"
	eventDrop        = "drop"
	eventShutdown    = "shutdown"
)

// wireFrame is the single JSON envelope of the relay protocol. Inbound frames
// carry Event "message" with Channel and Payload set; outbound frames carry
// the event name (subscribe, unsubscribe, ack, requestFull) and a payload.
type wireFrame struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

const (
	wireEventMessage     = "message"
	wireEventSubscribe   = "subscribe"
	wireEventUnsubscribe = "unsubscribe"
)

// WSConnection is the websocket implementation of Connection. It dials the
// relay, keeps the connection alive with exponential-backoff redials and
// replays its subscription set after every redial. Consumers learn about
// redials through Reconnects and must re-request full state themselves.
type WSConnection struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string
	token  string
	log    *zap.SugaredLogger

	inbound    chan InboundMessage
	reconnects chan struct{}

	machine *fsm.FSM

	// mu guards conn, subs and everConnected.
	mu            sync.Mutex
	conn          *websocket.Conn
	subs          map[string]bool
	everConnected bool

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewWSConnection dials url in the background and returns immediately.
// Frames published while disconnected fail; the caller's retry policy covers
// the gap.
func NewWSConnection(ctx context.Context, url, token string, inboundBuffer int, initialInterval, maxInterval time.Duration, log *zap.SugaredLogger) *WSConnection {
	ctx, cancel := context.WithCancel(ctx)
	c := &WSConnection{
		ctx:             ctx,
		cancel:          cancel,
		url:             url,
		token:           token,
		log:             log,
		inbound:         make(chan InboundMessage, inboundBuffer),
		reconnects:      make(chan struct{}, 1),
		subs:            make(map[string]bool),
		initialInterval: initialInterval,
		maxInterval:     maxInterval,
	}

	c.machine = fsm.NewFSM(
		stateDisconnected,
		fsm.Events{
			{Name: eventDial, Src: []string{stateDisconnected}, Dst: stateConnecting},
			{Name: eventEstablished, Src: []string{stateConnecting}, Dst: stateConnected},
			{Name: eventDrop, Src: []string{stateConnecting, stateConnected}, Dst: stateDisconnected},
			{Name: eventShutdown, Src: []string{stateDisconnected, stateConnecting, stateConnected}, Dst: stateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("Transport %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)

	go c.run()

	return c
}

// run owns the connection: dial, replay subscriptions, read until failure,
// repeat. Redial waits follow an exponential backoff that resets after every
// successful dial.
func (c *WSConnection) run() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if c.ctx.Err() != nil {
			c.shutdown()
			return
		}

		_ = c.machine.Event(c.ctx, eventDial)
		conn, err := c.dial()
		if err != nil {
			_ = c.machine.Event(c.ctx, eventDrop)
			wait := bo.NextBackOff()
			c.log.Warnf("Failed to dial %s, retrying in %s: %v", c.url, wait, err)
			select {
			case <-time.After(wait):
				continue
			case <-c.ctx.Done():
				c.shutdown()
				return
			}
		}
		bo.Reset()
		_ = c.machine.Event(c.ctx, eventEstablished)

		c.mu.Lock()
		c.conn = conn
		wasConnected := c.everConnected
		c.everConnected = true
		channels := make([]string, 0, len(c.subs))
		for channel := range c.subs {
			channels = append(channels, channel)
		}
		c.mu.Unlock()

		for _, channel := range channels {
			if err := c.send(wireFrame{Event: wireEventSubscribe, Channel: channel}); err != nil {
				c.log.Warnf("Failed to resubscribe %s: %v", channel, err)
			}
		}

		if wasConnected {
			// Non-blocking: one queued signal is enough, the consumer
			// re-requests everything anyway.
			select {
			case c.reconnects <- struct{}{}:
			default:
			}
		}

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = c.machine.Event(c.ctx, eventDrop)
	}
}

func (c *WSConnection) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	conn, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		return nil, err
	}
	// Channel payloads for large plants exceed the 32 KiB default.
	conn.SetReadLimit(16 * 1024 * 1024)

	return conn, nil
}

func (c *WSConnection) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.log.Warnf("Connection to %s lost: %v", c.url, err)
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		var frame wireFrame
		if err := safejson.Unmarshal(data, &frame); err != nil {
			c.log.Warnf("Dropping undecodable frame: %v", err)
			continue
		}
		if frame.Event != wireEventMessage {
			c.log.Debugf("Ignoring frame with event %s", frame.Event)
			continue
		}

		select {
		case c.inbound <- InboundMessage{Channel: frame.Channel, Payload: frame.Payload}:
		case <-c.ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

func (c *WSConnection) send(frame wireFrame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	data, err := safejson.Marshal(frame)
	if err != nil {
		return err
	}

	ctx, cancel := tools.Get5SecondContext()
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, data)
}

// Subscribe registers the channel and tells the relay. The registration
// outlives connection drops; run replays it after every redial.
func (c *WSConnection) Subscribe(channel string) error {
	c.mu.Lock()
	c.subs[channel] = true
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}

	return c.send(wireFrame{Event: wireEventSubscribe, Channel: channel})
}

func (c *WSConnection) Unsubscribe(channel string) error {
	c.mu.Lock()
	delete(c.subs, channel)
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}

	return c.send(wireFrame{Event: wireEventUnsubscribe, Channel: channel})
}

func (c *WSConnection) Publish(frame Frame) error {
	return c.send(wireFrame{Event: frame.Event, Payload: frame.Payload})
}

func (c *WSConnection) Inbound() <-chan InboundMessage {
	return c.inbound
}

func (c *WSConnection) Reconnects() <-chan struct{} {
	return c.reconnects
}

// State reports the lifecycle state for the debug endpoint.
func (c *WSConnection) State() string {
	return c.machine.Current()
}

func (c *WSConnection) shutdown() {
	_ = c.machine.Event(context.Background(), eventShutdown)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	close(c.inbound)
}

func (c *WSConnection) Close() error {
	c.cancel()
	return nil
}
