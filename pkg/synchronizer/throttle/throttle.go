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

// Package throttle rate-limits the materialized snapshots handed to the
// external store. It runs strictly after merge/apply: raw transport events
// are never throttled, or deltas would silently drop out of the version
// sequence. The policy is leading and trailing edge: the first update in a
// burst is published immediately, intermediate updates are coalesced, and the
// final update is always published once the interval elapses.
package throttle

import (
	"sync"
	"time"

	"github.com/plantpulse/plantpulse/pkg/metrics"
	"github.com/plantpulse/plantpulse/pkg/models"
)

// Throttler coalesces publishes for one channel.
type Throttler struct {
	mu          sync.Mutex
	channel     string
	interval    time.Duration
	publish     func(models.ChannelData)
	lastPublish time.Time
	pending     models.ChannelData
	hasPending  bool
	timer       *time.Timer
	stopped     bool
}

// New creates a throttler for one channel. publish is invoked with the most
// recent snapshot, possibly from a timer goroutine. It always runs under the
// throttler's lock, so it must not call back into the throttler.
func New(channel string, interval time.Duration, publish func(models.ChannelData)) *Throttler {
	return &Throttler{
		channel:  channel,
		interval: interval,
		publish:  publish,
	}
}

// Offer hands a freshly materialized snapshot to the throttler. Snapshots
// offered while the interval is still running replace each other; only the
// newest survives to the trailing publish.
func (t *Throttler) Offer(data models.ChannelData) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	if t.interval <= 0 {
		t.publish(data)
		return
	}

	now := time.Now()
	if t.timer == nil && now.Sub(t.lastPublish) >= t.interval {
		// Leading edge: quiet channel, publish immediately.
		t.lastPublish = now
		t.publish(data)
		return
	}

	if t.hasPending {
		metrics.ThrottleCoalesced.WithLabelValues(t.channel).Inc()
	}
	t.pending = data
	t.hasPending = true

	if t.timer == nil {
		wait := t.interval - now.Sub(t.lastPublish)
		if wait < 0 {
			wait = 0
		}
		t.timer = time.AfterFunc(wait, t.fire)
	}
}

// fire publishes the trailing snapshot of a burst. The publish happens under
// the lock, so Stop cannot return while a trailing publish is in flight.
func (t *Throttler) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timer = nil
	if t.stopped || !t.hasPending {
		return
	}
	data := t.pending
	t.pending = nil
	t.hasPending = false
	t.lastPublish = time.Now()
	t.publish(data)
}

// Stop cancels any pending trailing publish and drops the pending snapshot.
// Called on session teardown; a stopped throttler ignores further offers.
// Stop blocks until an in-flight publish has finished, so once it returns no
// snapshot from this throttler can reach the store anymore.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.pending = nil
	t.hasPending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
