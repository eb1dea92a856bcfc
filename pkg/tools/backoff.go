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

package tools

import "time"

type BackoffPolicy int

const (
	BackoffPolicyExponential BackoffPolicy = iota
	BackoffPolicyLinear
)

// Backoff is the blocking backoff used by the outbound pusher loop.
// For the transport reconnect loop use cenkalti/backoff instead.
type Backoff struct {
	lastBackoff time.Duration
	start       time.Duration
	step        time.Duration
	max         time.Duration
	policy      BackoffPolicy
}

func NewBackoff(start, step, max time.Duration, policy BackoffPolicy) *Backoff {
	if start <= 0 {
		start = 1 * time.Millisecond
	}
	return &Backoff{
		lastBackoff: start,
		start:       start,
		step:        step,
		max:         max,
		policy:      policy,
	}
}

// Reset resets the backoff to its initial state.
func (b *Backoff) Reset() {
	b.lastBackoff = b.start
}

// Next returns the next backoff duration.
func (b *Backoff) Next() time.Duration {
	backoff := b.lastBackoff

	if b.policy == BackoffPolicyLinear {
		backoff += b.step
	} else {
		backoff *= b.step
	}

	if backoff > b.max {
		backoff = b.max
	}

	b.lastBackoff = backoff
	return backoff
}

// IncrementAndSleep increments the backoff and sleeps for the duration.
func (b *Backoff) IncrementAndSleep() {
	time.Sleep(b.Next())
}
