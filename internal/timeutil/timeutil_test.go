package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSimulatedClock(start)

	assert.Equal(t, start, clock.Now())

	clock.AdvanceTime(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), clock.Now())

	later := start.Add(time.Hour)
	clock.SetTime(later)
	assert.Equal(t, later, clock.Now())
}

func TestRealClockAdvances(t *testing.T) {
	clock := NewRealClock()
	first := clock.Now()
	time.Sleep(time.Millisecond)
	second := clock.Now()
	assert.True(t, second.After(first))
}
