// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTimeWindowAdvances(t *testing.T) {
	clock := newFakeClock()
	w := newTimeWindowWithClock("engine", 5, 1000, clock.Now)
	assert.Equal(t, "engine", w.EngineID())
	assert.Equal(t, uint32(5), w.Boots())
	assert.Equal(t, uint32(1000), w.Time())

	clock.Advance(10 * time.Second)
	assert.Equal(t, uint32(1010), w.Time())
	assert.Equal(t, uint32(1000), w.LastReceivedTime())
}

func TestTimeWindowCheck(t *testing.T) {
	clock := newFakeClock()
	w := newTimeWindowWithClock("engine", 5, 1000, clock.Now)
	clock.Advance(10 * time.Second)

	var tw *NotInTimeWindowError

	// within 150 seconds of local time
	assert.NoError(t, w.Check(5, 1000))
	assert.NoError(t, w.Check(5, 860))
	assert.ErrorAs(t, w.Check(5, 859), &tw)
	assert.Equal(t, uint32(859), tw.Time)

	// older boots
	assert.ErrorAs(t, w.Check(4, 5000), &tw)

	// newer time is adopted
	assert.NoError(t, w.Check(5, 2000))
	assert.Equal(t, uint32(2000), w.LastReceivedTime())
	assert.Equal(t, uint32(2000), w.Time())
	assert.ErrorAs(t, w.Check(5, 1010), &tw)

	// newer boots is adopted
	assert.NoError(t, w.Check(6, 3))
	assert.Equal(t, uint32(6), w.Boots())
	assert.Equal(t, uint32(3), w.Time())

	// latched boots
	assert.ErrorAs(t, w.Check(math.MaxInt32, 0), &tw)
}

func TestTimeWindowUpdate(t *testing.T) {
	clock := newFakeClock()
	w := newTimeWindowWithClock("engine", 1, 100, clock.Now)
	w.Update(2, 50)
	assert.Equal(t, uint32(2), w.Boots())
	assert.Equal(t, uint32(50), w.Time())
}

func TestTimeWindowRollsBoots(t *testing.T) {
	clock := newFakeClock()
	w := newTimeWindowWithClock("engine", 1, 0, clock.Now)
	clock.Advance((math.MaxInt32 + 10) * time.Second)
	assert.Equal(t, uint32(2), w.Boots())
	assert.Equal(t, uint32(10), w.Time())
}
