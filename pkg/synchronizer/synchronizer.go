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

// Package synchronizer multiplexes the versioned data feeds of one active
// session over the shared transport connection. Each inbound message runs to
// completion through one pipeline: classify, reassemble or wait, apply or
// recover, ack, throttle, publish. A session switch tears down every cache,
// chunk buffer and throttle timer of the outgoing session before any
// new-session data can land.
package synchronizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plantpulse/plantpulse/pkg/config"
	"github.com/plantpulse/plantpulse/pkg/encoding"
	"github.com/plantpulse/plantpulse/pkg/metrics"
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/cache"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/chunker"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/envelope"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/recovery"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/store"
	"github.com/plantpulse/plantpulse/pkg/synchronizer/throttle"
	"github.com/plantpulse/plantpulse/pkg/tools"
	"github.com/plantpulse/plantpulse/pkg/tools/watchdog"
	"github.com/plantpulse/plantpulse/pkg/transport"
)

const chunkChannelSuffix = ":chunk"

// QualifiedChannel builds the session-scoped wire name of a channel.
func QualifiedChannel(sessionID, channel string) string {
	return "session:" + sessionID + ":" + channel
}

// ChunkChannel is the companion channel carrying chunk fragments.
func ChunkChannel(qualified string) string {
	return qualified + chunkChannelSuffix
}

type channelState struct {
	spec      ChannelSpec
	cache     *cache.Channel
	throttler *throttle.Throttler
	qualified string
}

// ChannelStatus is the read-only view served by the debug endpoint.
type ChannelStatus struct {
	Name       string             `json:"name"`
	Kind       models.ChannelKind `json:"kind"`
	Version    int64              `json:"version"`
	Primed     bool               `json:"primed"`
	LastFullAt time.Time          `json:"lastFullAt"`
}

type Synchronizer struct {
	ctx  context.Context
	cfg  config.Config
	conn transport.Connection
	st   store.Store
	dog  watchdog.Iface
	log  *zap.SugaredLogger

	outbound    chan transport.Frame
	recovery    *recovery.Controller
	acks        *recovery.AckEmitter
	reassembler *chunker.Reassembler

	specs  []ChannelSpec
	legacy []string

	// mu guards the session state: the process goroutine is the only writer
	// of caches, but ActivateSession may be called from the outside and the
	// debug endpoint reads channel versions.
	mu             sync.Mutex
	sessionID      string
	channels       map[string]*channelState
	legacySubbed   bool
	legacyChannels map[string]bool
}

func New(
	ctx context.Context,
	cfg config.Config,
	conn transport.Connection,
	st store.Store,
	dog watchdog.Iface,
	specs []ChannelSpec,
	legacy []string,
	log *zap.SugaredLogger,
) *Synchronizer {
	s := &Synchronizer{
		ctx:            ctx,
		cfg:            cfg,
		conn:           conn,
		st:             st,
		dog:            dog,
		log:            log,
		outbound:       make(chan transport.Frame, cfg.OutboundBuffer),
		reassembler:    chunker.NewReassembler(cfg.ChunkIdleTTL.Std()),
		specs:          specs,
		legacy:         legacy,
		channels:       make(map[string]*channelState),
		legacyChannels: make(map[string]bool, len(legacy)),
	}
	for _, name := range legacy {
		s.legacyChannels[name] = true
	}
	s.recovery = recovery.NewController(s.outbound, log)
	s.acks = recovery.NewAckEmitter(s.outbound, log)

	return s
}

// Start launches the process and pusher loops.
func (s *Synchronizer) Start() {
	go s.process()
	go s.push()
}

// ActivateSession switches the engine to a new session. Teardown of the
// previous session is total: unsubscribe every qualified channel, discard
// every cache and chunk buffer, stop every pending throttle timer and clear
// the store, all before the new session's subscriptions exist. After the
// subscriptions are registered a full snapshot is requested for every
// channel, which self-heals any missed initial push.
func (s *Synchronizer) ActivateSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for qualified, state := range s.channels {
		if qualified != state.qualified {
			// chunk companion alias, handled with its parent
			continue
		}
		state.throttler.Stop()
		if err := s.conn.Unsubscribe(state.qualified); err != nil {
			s.log.Warnf("Failed to unsubscribe %s: %v", state.qualified, err)
		}
		if err := s.conn.Unsubscribe(ChunkChannel(state.qualified)); err != nil {
			s.log.Warnf("Failed to unsubscribe %s: %v", ChunkChannel(state.qualified), err)
		}
	}

	s.channels = make(map[string]*channelState)
	s.reassembler.Reset()
	s.st.Reset()
	s.sessionID = sessionID
	metrics.SessionSwitches.Inc()

	for _, spec := range s.specs {
		spec := spec
		qualified := QualifiedChannel(sessionID, spec.Name)
		state := &channelState{
			spec:      spec,
			cache:     cache.NewChannel(spec.Name, spec.Kind, spec.Merger),
			qualified: qualified,
		}
		state.throttler = throttle.New(spec.Name, s.cfg.ThrottleFor(spec.Name), func(data models.ChannelData) {
			spec.Publish(s.st, data)
		})
		s.channels[qualified] = state
		s.channels[ChunkChannel(qualified)] = state

		if err := s.conn.Subscribe(qualified); err != nil {
			return err
		}
		if err := s.conn.Subscribe(ChunkChannel(qualified)); err != nil {
			return err
		}
	}

	// Legacy feeds are not session-scoped; subscribe once.
	if !s.legacySubbed {
		for _, name := range s.legacy {
			if err := s.conn.Subscribe(name); err != nil {
				return err
			}
		}
		s.legacySubbed = true
	}

	for _, spec := range s.specs {
		s.recovery.RequestFull(sessionID, spec.Name)
	}

	s.log.Infof("Activated session %s with %d channels", sessionID, len(s.specs))

	return nil
}

// process is the single goroutine that mutates channel caches. Every inbound
// message is one task that runs to completion; the only suspension point is
// an incomplete chunk set, which simply waits for more fragments.
func (s *Synchronizer) process() {
	watcherUUID := s.dog.RegisterHeartbeat("synchronizer-process", 10, 600)
	expireTicker := time.NewTicker(s.cfg.ChunkCullInterval.Std())
	defer expireTicker.Stop()

	for {
		select {
		case msg, ok := <-s.conn.Inbound():
			if !ok {
				s.dog.UnregisterHeartbeat(watcherUUID)
				return
			}
			s.dog.ReportHeartbeatStatus(watcherUUID, watchdog.HEARTBEAT_STATUS_OK)
			s.handleMessage(msg)
		case <-s.conn.Reconnects():
			s.dog.ReportHeartbeatStatus(watcherUUID, watchdog.HEARTBEAT_STATUS_OK)
			s.handleReconnect()
		case <-expireTicker.C:
			s.dog.ReportHeartbeatStatus(watcherUUID, watchdog.HEARTBEAT_STATUS_OK)
			s.expireChunks()
		case <-s.ctx.Done():
			s.dog.UnregisterHeartbeat(watcherUUID)
			return
		}
	}
}

func (s *Synchronizer) handleMessage(msg transport.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.legacyChannels[msg.Channel] {
		s.forwardLegacy(msg.Channel, msg.Payload)
		return
	}

	state, ok := s.channels[msg.Channel]
	if !ok {
		// Either a channel of a torn-down session or a subscription leak.
		// Session isolation: it must never touch current state.
		s.log.Debugf("Dropping message for unknown channel %s", msg.Channel)
		return
	}

	plain, err := encoding.Decompress(msg.Payload)
	if err != nil {
		s.log.Warnf("Failed to decompress message on %s: %v", msg.Channel, err)
		metrics.ApplyFailures.WithLabelValues(state.spec.Name, "decode").Inc()
		return
	}

	env, isEnvelope := envelope.Classify(plain)
	if !isEnvelope {
		// Versioned channels can still carry legacy pushes during rollout.
		s.forwardLegacy(state.spec.Name, plain)
		return
	}

	if env.Channel != state.spec.Name {
		// Misaddressed by the relay or a subscription leak; applying it
		// would corrupt another channel's cache.
		s.log.Warnf("Envelope for %s arrived on subscription %s, requesting full", env.Channel, msg.Channel)
		metrics.ApplyFailures.WithLabelValues(state.spec.Name, "misaddressed").Inc()
		s.recovery.RequestFull(s.sessionID, state.spec.Name)
		return
	}

	assembled, err := s.reassembler.Feed(env)
	if err != nil {
		if errors.Is(err, chunker.ErrChunkMalformed) {
			s.log.Warnf("Malformed chunk set on %s: %v", msg.Channel, err)
			s.recovery.RequestFull(s.sessionID, state.spec.Name)
			return
		}
		s.log.Errorf("Chunk reassembly failed on %s: %v", msg.Channel, err)
		return
	}
	if assembled == nil {
		// Incomplete chunk set; resume when the remaining fragments arrive.
		return
	}

	s.apply(state, assembled)
}

func (s *Synchronizer) apply(state *channelState, env *models.Envelope) {
	if err := state.cache.Apply(env); err != nil {
		switch {
		case errors.Is(err, cache.ErrNoCachedState):
			metrics.ApplyFailures.WithLabelValues(state.spec.Name, "no_cached_state").Inc()
			s.log.Infof("Delta before baseline on %s, requesting full: %v", state.spec.Name, err)
		case errors.Is(err, cache.ErrVersionMismatch):
			metrics.ApplyFailures.WithLabelValues(state.spec.Name, "version_mismatch").Inc()
			s.log.Warnf("Version mismatch on %s, requesting full: %v", state.spec.Name, err)
		default:
			metrics.ApplyFailures.WithLabelValues(state.spec.Name, "decode").Inc()
			s.log.Warnf("Failed to apply message on %s, requesting full: %v", state.spec.Name, err)
		}
		// The stale cache stays readable; the UI keeps showing last-known-good
		// data until the requested full arrives. Buffered fragments for the
		// channel would only complete into more stale versions, so they go too.
		s.reassembler.ResetChannel(state.spec.Name)
		s.recovery.RequestFull(s.sessionID, state.spec.Name)

		return
	}

	if env.Type == models.Full {
		metrics.FullsApplied.WithLabelValues(state.spec.Name).Inc()
	} else {
		metrics.DeltasApplied.WithLabelValues(state.spec.Name).Inc()
	}

	if env.RequiresAck {
		s.acks.Ack(state.qualified, env.Version)
	}

	// Throttling applies strictly after merge, never to raw transport events.
	state.throttler.Offer(state.cache.Data())
}

func (s *Synchronizer) forwardLegacy(channel string, payload []byte) {
	plain, err := encoding.Decompress(payload)
	if err != nil {
		s.log.Warnf("Failed to decompress legacy payload on %s: %v", channel, err)
		return
	}
	s.st.SetLegacy(channel, plain)
}

// handleReconnect re-requests a full snapshot for every channel of the active
// session: deltas missed during the outage cannot be assumed absent.
func (s *Synchronizer) handleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID == "" {
		return
	}
	s.log.Infof("Transport reconnected, requesting full state for %d channels", len(s.specs))
	for _, spec := range s.specs {
		s.recovery.RequestFull(s.sessionID, spec.Name)
	}
}

// expireChunks discards idle incomplete chunk sets and requests a full
// resync for their channels, as if a version mismatch had occurred.
func (s *Synchronizer) expireChunks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, channel := range s.reassembler.Expire(time.Now()) {
		s.log.Warnf("Discarding idle incomplete chunk set on %s, requesting full", channel)
		s.recovery.RequestFull(s.sessionID, channel)
	}
}

// push drains the outbound frame channel onto the transport. Failed frames
// are retried with backoff a few times, then dropped: acks and full requests
// are both safe to lose, the next failure or reconnect regenerates them.
func (s *Synchronizer) push() {
	watcherUUID := s.dog.RegisterHeartbeat("synchronizer-push", 10, 600)
	bo := tools.NewBackoff(10*time.Millisecond, 2*time.Millisecond, 5*time.Second, tools.BackoffPolicyExponential)

	for {
		select {
		case frame := <-s.outbound:
			s.dog.ReportHeartbeatStatus(watcherUUID, watchdog.HEARTBEAT_STATUS_OK)
			var err error
			for attempt := 0; attempt < 3; attempt++ {
				if err = s.conn.Publish(frame); err == nil {
					break
				}
				bo.IncrementAndSleep()
			}
			if err != nil {
				s.dog.ReportHeartbeatStatus(watcherUUID, watchdog.HEARTBEAT_STATUS_WARNING)
				s.log.Warnf("Dropping %s frame after 3 attempts: %v", frame.Event, err)
				continue
			}
			bo.Reset()
		case <-s.ctx.Done():
			s.dog.UnregisterHeartbeat(watcherUUID)
			return
		}
	}
}

// Status reports the per-channel sync state of the active session.
func (s *Synchronizer) Status() (string, []ChannelStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]ChannelStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		state, ok := s.channels[QualifiedChannel(s.sessionID, spec.Name)]
		if !ok {
			continue
		}
		statuses = append(statuses, ChannelStatus{
			Name:       spec.Name,
			Kind:       spec.Kind,
			Version:    state.cache.Version(),
			Primed:     state.cache.Primed(),
			LastFullAt: state.cache.LastFullAt(),
		})
	}

	return s.sessionID, statuses
}
