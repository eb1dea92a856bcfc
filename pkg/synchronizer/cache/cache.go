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

// Package cache holds the per-channel materialized state and applies full and
// delta messages to it. A channel's data always reflects exactly its version;
// merges are all-or-nothing, so there is never a state reflecting a partially
// applied delta.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/plantpulse/plantpulse/pkg/models"
)

var (
	// ErrNoCachedState signals a delta that arrived before any baseline full.
	ErrNoCachedState = errors.New("no cached state")
	// ErrVersionMismatch signals a delta that does not extend the cached
	// version by exactly one. No gap tolerance: skipped or reordered versions
	// are failures, never best-effort merges.
	ErrVersionMismatch = errors.New("version mismatch")
)

// Channel is the cached state of one session-scoped data feed. It is owned by
// the session multiplexer and mutated only from the single process goroutine,
// so it carries no lock.
type Channel struct {
	Name       string
	Kind       models.ChannelKind
	merger     Merger
	data       models.ChannelData
	version    int64
	lastFullAt time.Time
	primed     bool
}

func NewChannel(name string, kind models.ChannelKind, merger Merger) *Channel {
	return &Channel{
		Name:   name,
		Kind:   kind,
		merger: merger,
	}
}

// Apply merges env into the channel state. A full message replaces the cache
// wholesale and always succeeds if its payload decodes. A delta requires an
// existing cache at exactly env.Version-1; on any failure the cached state is
// left untouched for continued read access.
func (c *Channel) Apply(env *models.Envelope) error {
	switch env.Type {
	case models.Full:
		data, err := c.merger.Materialize(env.Payload)
		if err != nil {
			return fmt.Errorf("failed to materialize full snapshot for %s: %w", c.Name, err)
		}
		c.data = data
		c.version = env.Version
		c.lastFullAt = time.Now()
		c.primed = true

		return nil

	case models.Delta:
		if !c.primed {
			return fmt.Errorf("%w: delta v%d for %s", ErrNoCachedState, env.Version, c.Name)
		}
		if env.Version != c.version+1 {
			return fmt.Errorf("%w: delta v%d does not extend cached v%d for %s", ErrVersionMismatch, env.Version, c.version, c.Name)
		}

		data, err := c.merger.Merge(c.data, env.Payload)
		if err != nil {
			return fmt.Errorf("failed to merge delta v%d into %s: %w", env.Version, c.Name, err)
		}
		c.data = data
		c.version = env.Version

		return nil

	default:
		return fmt.Errorf("unexpected message type %q for %s", env.Type, c.Name)
	}
}

// Version returns the version the cached data reflects.
func (c *Channel) Version() int64 { return c.version }

// Primed reports whether a baseline full has been applied.
func (c *Channel) Primed() bool { return c.primed }

// LastFullAt returns when the last full snapshot was applied.
func (c *Channel) LastFullAt() time.Time { return c.lastFullAt }

// Data returns the materialized state. Callers must treat it as read-only;
// the publisher deep-copies before handing it outside the engine.
func (c *Channel) Data() models.ChannelData { return c.data }
