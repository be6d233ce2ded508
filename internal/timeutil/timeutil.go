// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package timeutil exports a Clock interface to allow tests to
// control the flow of time.
package timeutil

import "time"

// Clock represents a source of time.
type Clock interface {
	// Now returns the current local time.
	Now() time.Time
}

// RealClock is a Clock that delegates to the time package.
type RealClock struct{}

// NewRealClock returns a RealClock.
func NewRealClock() RealClock { return RealClock{} }

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// SimulatedClock is a Clock that returns a fixed, externally advanced time.
// Safe for use only from a single goroutine at a time, matching this
// library's use in tests.
type SimulatedClock struct {
	t time.Time
}

// NewSimulatedClock returns a SimulatedClock set to t.
func NewSimulatedClock(t time.Time) *SimulatedClock {
	return &SimulatedClock{t: t}
}

// Now implements Clock.
func (c *SimulatedClock) Now() time.Time { return c.t }

// AdvanceTime moves the clock forward by d.
func (c *SimulatedClock) AdvanceTime(d time.Duration) { c.t = c.t.Add(d) }

// SetTime sets the clock to t.
func (c *SimulatedClock) SetTime(t time.Time) { c.t = t }
