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

// Package envelope classifies inbound payloads. Feeds that never adopted the
// versioned delta protocol (e.g. the low-frequency plant status feed) still
// push plain JSON; those bypass the synchronization engine entirely and are
// forwarded to the store unchanged.
package envelope

import (
	"github.com/plantpulse/plantpulse/pkg/models"
	"github.com/plantpulse/plantpulse/pkg/tools/safejson"
)

// probe mirrors the minimal envelope shape. Pointer fields distinguish an
// absent key from a zero value.
type probe struct {
	Type    *string  `json:"type"`
	Channel *string  `json:"channel"`
	Version *float64 `json:"version"`
}

// Classify decides whether raw conforms to the versioned message envelope.
// It returns the decoded envelope and true, or nil and false for a legacy
// payload. Pure classification, no side effects.
func Classify(raw []byte) (*models.Envelope, bool) {
	var p probe
	if err := safejson.Unmarshal(raw, &p); err != nil {
		return nil, false
	}

	if p.Type == nil || p.Channel == nil || p.Version == nil {
		return nil, false
	}

	switch models.MessageType(*p.Type) {
	case models.Full, models.Delta:
	default:
		return nil, false
	}

	var env models.Envelope
	if err := safejson.Unmarshal(raw, &env); err != nil {
		return nil, false
	}

	return &env, true
}
