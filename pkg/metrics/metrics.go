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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	namespace = "plantpulse"
	subsystem = "sync"

	// FullsApplied counts full snapshots applied per channel.
	FullsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fulls_applied_total",
			Help:      "Total number of full snapshots applied per channel",
		},
		[]string{"channel"},
	)

	// DeltasApplied counts deltas applied per channel.
	DeltasApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deltas_applied_total",
			Help:      "Total number of deltas applied per channel",
		},
		[]string{"channel"},
	)

	// ApplyFailures counts rejected messages per channel and failure reason
	// (version_mismatch, no_cached_state, decode).
	ApplyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "apply_failures_total",
			Help:      "Total number of rejected sync messages per channel and reason",
		},
		[]string{"channel", "reason"},
	)

	// FullRequests counts outgoing full-resync requests per channel.
	FullRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "full_requests_total",
			Help:      "Total number of full state re-requests per channel",
		},
		[]string{"channel"},
	)

	// AcksSent counts outgoing acknowledgments per channel.
	AcksSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "acks_sent_total",
			Help:      "Total number of acknowledgments sent per channel",
		},
		[]string{"channel"},
	)

	// ChunksBuffered counts chunk fragments currently waiting for reassembly.
	ChunksBuffered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunks_buffered",
			Help:      "Number of chunk fragments buffered for reassembly",
		},
	)

	// MessagesReassembled counts logical messages rebuilt from chunks.
	MessagesReassembled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_reassembled_total",
			Help:      "Total number of chunked messages reassembled",
		},
	)

	// ThrottleCoalesced counts snapshots coalesced by the publish throttler.
	ThrottleCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "throttle_coalesced_total",
			Help:      "Total number of snapshots coalesced into a trailing publish per channel",
		},
		[]string{"channel"},
	)

	// SessionSwitches counts session activations.
	SessionSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_switches_total",
			Help:      "Total number of session activations",
		},
	)
)
