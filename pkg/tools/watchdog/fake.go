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

package watchdog

import "github.com/google/uuid"

// Fake is a no-op watchdog for tests.
type Fake struct{}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Start() {}

func (f *Fake) RegisterHeartbeat(name string, warningsUntilFailure uint64, timeoutSeconds uint64) uuid.UUID {
	return uuid.New()
}

func (f *Fake) UnregisterHeartbeat(uniqueIdentifier uuid.UUID) {}

func (f *Fake) ReportHeartbeatStatus(uniqueIdentifier uuid.UUID, status HeartbeatStatus) {}
