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

// Package watchdog supervises the long-lived goroutines of the sync engine
// (process loop, pusher loop, transport reader). Each loop registers a
// heartbeat and reports its status on every cycle; a heartbeat that goes
// silent past its timeout, or reports too many consecutive warnings, panics
// the process so the supervisor restarts it in a clean state.
package watchdog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HeartbeatStatus is reported by a supervised goroutine on every cycle.
type HeartbeatStatus int

const (
	HEARTBEAT_STATUS_OK HeartbeatStatus = iota
	HEARTBEAT_STATUS_WARNING
	HEARTBEAT_STATUS_ERROR
)

// Iface allows tests to swap in a no-op watchdog.
type Iface interface {
	Start()
	RegisterHeartbeat(name string, warningsUntilFailure uint64, timeoutSeconds uint64) uuid.UUID
	UnregisterHeartbeat(uniqueIdentifier uuid.UUID)
	ReportHeartbeatStatus(uniqueIdentifier uuid.UUID, status HeartbeatStatus)
}

type heartbeat struct {
	name                 string
	lastHeartbeatTime    atomic.Int64
	warningCount         atomic.Uint32
	warningsUntilFailure uint64
	timeoutSeconds       uint64
}

type Watchdog struct {
	registeredHeartbeats      map[uuid.UUID]*heartbeat
	registeredHeartbeatsMutex sync.Mutex
	badHeartbeatChan          chan uuid.UUID
	ctx                       context.Context
	ticker                    *time.Ticker
	logger                    *zap.SugaredLogger
}

func NewWatchdog(ctx context.Context, ticker *time.Ticker, logger *zap.SugaredLogger) *Watchdog {
	return &Watchdog{
		registeredHeartbeats: make(map[uuid.UUID]*heartbeat),
		// Buffered so a goroutine reporting a bad heartbeat before Start never blocks.
		badHeartbeatChan: make(chan uuid.UUID, 100),
		ctx:              ctx,
		ticker:           ticker,
		logger:           logger,
	}
}

// Start runs the watchdog loop. It blocks; run it in its own goroutine.
func (w *Watchdog) Start() {
	for {
		select {
		case uniqueIdentifier := <-w.badHeartbeatChan:
			panic(fmt.Sprintf("heartbeat errored: %s (%s)", w.heartbeatName(uniqueIdentifier), uniqueIdentifier))
		case <-w.ticker.C:
			w.checkHeartbeats()
		case <-w.ctx.Done():
			w.logger.Infof("Watchdog context done")
			return
		}
	}
}

func (w *Watchdog) checkHeartbeats() {
	now := time.Now().UTC().Unix()

	w.registeredHeartbeatsMutex.Lock()
	var overdue *heartbeat
	var overdueBy int64
	for _, hb := range w.registeredHeartbeats {
		// timeoutSeconds == 0 disables the silence check
		if hb.timeoutSeconds == 0 {
			continue
		}
		silentFor := now - hb.lastHeartbeatTime.Load()
		if silentFor > int64(hb.timeoutSeconds) {
			overdue = hb
			overdueBy = silentFor - int64(hb.timeoutSeconds)
			break
		}
	}
	w.registeredHeartbeatsMutex.Unlock()

	// Unlocked before panicking so the recovery path can still inspect the map.
	if overdue != nil {
		panic(fmt.Sprintf("heartbeat too old: %s (%d seconds overdue)", overdue.name, overdueBy))
	}
}

// RegisterHeartbeat registers a new heartbeat and returns its identifier.
// warningsUntilFailure == 0 disables the consecutive-warning check,
// timeoutSeconds == 0 disables the silence check.
func (w *Watchdog) RegisterHeartbeat(name string, warningsUntilFailure uint64, timeoutSeconds uint64) uuid.UUID {
	uniqueIdentifier := uuid.New()

	hb := &heartbeat{
		name:                 name,
		warningsUntilFailure: warningsUntilFailure,
		timeoutSeconds:       timeoutSeconds,
	}
	hb.lastHeartbeatTime.Store(time.Now().UTC().Unix())

	w.registeredHeartbeatsMutex.Lock()
	defer w.registeredHeartbeatsMutex.Unlock()
	for _, existing := range w.registeredHeartbeats {
		if existing.name == name {
			panic(fmt.Sprintf("heartbeat already registered: %s", name))
		}
	}
	w.registeredHeartbeats[uniqueIdentifier] = hb
	w.logger.Infof("Registered heartbeat %s (%s)", name, uniqueIdentifier)

	return uniqueIdentifier
}

// UnregisterHeartbeat removes a heartbeat. Call it on a normal goroutine exit.
func (w *Watchdog) UnregisterHeartbeat(uniqueIdentifier uuid.UUID) {
	w.registeredHeartbeatsMutex.Lock()
	defer w.registeredHeartbeatsMutex.Unlock()
	delete(w.registeredHeartbeats, uniqueIdentifier)
}

// ReportHeartbeatStatus updates a heartbeat. Report OK on every healthy cycle;
// WARNING when the loop is degraded; ERROR panics the process.
func (w *Watchdog) ReportHeartbeatStatus(uniqueIdentifier uuid.UUID, status HeartbeatStatus) {
	w.registeredHeartbeatsMutex.Lock()
	hb, ok := w.registeredHeartbeats[uniqueIdentifier]
	w.registeredHeartbeatsMutex.Unlock()
	if !ok {
		w.logger.Warnf("Report heartbeat called with unknown identifier: %s", uniqueIdentifier)
		return
	}

	hb.lastHeartbeatTime.Store(time.Now().UTC().Unix())

	switch status {
	case HEARTBEAT_STATUS_OK:
		hb.warningCount.Store(0)
	case HEARTBEAT_STATUS_WARNING:
		warnings := hb.warningCount.Add(1)
		if hb.warningsUntilFailure != 0 && uint64(warnings) >= hb.warningsUntilFailure {
			w.logger.Errorf("Heartbeat %s sent too many consecutive warnings (%d/%d)", hb.name, warnings, hb.warningsUntilFailure)
			w.badHeartbeatChan <- uniqueIdentifier
		}
	case HEARTBEAT_STATUS_ERROR:
		w.badHeartbeatChan <- uniqueIdentifier
	}
}

func (w *Watchdog) heartbeatName(uniqueIdentifier uuid.UUID) string {
	w.registeredHeartbeatsMutex.Lock()
	defer w.registeredHeartbeatsMutex.Unlock()
	if hb, ok := w.registeredHeartbeats[uniqueIdentifier]; ok {
		return hb.name
	}
	return "unknown"
}
