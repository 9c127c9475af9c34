// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"math"
	"sync"
	"time"
)

// timeWindowSeconds is the anti-replay tolerance of RFC 3414 section 3.2.7.
const timeWindowSeconds = 150

// TimeWindow tracks snmpEngineBoots and snmpEngineTime of one engine. Time
// is kept as an origin so that it advances with the local clock; once more
// than 2^31-1 seconds have passed boots is incremented and the origin moves
// forward by the same amount.
type TimeWindow struct {
	mu       sync.Mutex
	engineID string
	boots    uint32
	origin   time.Time
	latest   uint32 // latestReceivedEngineTime
	now      func() time.Time
}

// NewTimeWindow returns a window for engineID holding boots and engineTime
// as of now.
func NewTimeWindow(engineID string, boots, engineTime uint32) *TimeWindow {
	return newTimeWindowWithClock(engineID, boots, engineTime, time.Now)
}

func newTimeWindowWithClock(engineID string, boots, engineTime uint32, now func() time.Time) *TimeWindow {
	w := &TimeWindow{engineID: engineID, now: now}
	w.update(boots, engineTime)
	return w
}

// EngineID is the engine this window belongs to.
func (w *TimeWindow) EngineID() string {
	return w.engineID
}

// Update records boots and engineTime as current.
func (w *TimeWindow) Update(boots, engineTime uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.update(boots, engineTime)
}

func (w *TimeWindow) update(boots, engineTime uint32) {
	w.boots = boots
	w.latest = engineTime
	w.origin = w.now().Add(-time.Duration(engineTime) * time.Second)
}

// roll advances boots for every 2^31-1 seconds elapsed since the origin.
func (w *TimeWindow) roll() int64 {
	elapsed := int64(w.now().Sub(w.origin) / time.Second)
	for elapsed > math.MaxInt32 {
		if w.boots < math.MaxInt32 {
			w.boots++
		}
		w.origin = w.origin.Add(math.MaxInt32 * time.Second)
		elapsed -= math.MaxInt32
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

// Boots is the local notion of snmpEngineBoots.
func (w *TimeWindow) Boots() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roll()
	return w.boots
}

// Time is the local notion of snmpEngineTime.
func (w *TimeWindow) Time() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return uint32(w.roll()) //nolint:gosec
}

// LastReceivedTime is latestReceivedEngineTime.
func (w *TimeWindow) LastReceivedTime() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest
}

// Check applies RFC 3414 section 3.2.7 (b) to an authentic message from
// the authoritative engine: newer values are recorded, then the message is
// rejected if it lies outside the window.
func (w *TimeWindow) Check(boots, engineTime uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	localTime := w.roll()

	if boots > w.boots || (boots == w.boots && engineTime > w.latest) {
		w.update(boots, engineTime)
		localTime = int64(engineTime)
	}

	if boots == math.MaxInt32 || boots < w.boots ||
		(boots == w.boots && int64(engineTime) < localTime-timeWindowSeconds) {
		return &NotInTimeWindowError{EngineID: w.engineID, Boots: boots, Time: engineTime}
	}
	return nil
}
