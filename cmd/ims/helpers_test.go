package main

import "time"

// stepClock 每次调用前进 step
type stepClock struct {
	current time.Time
	step    time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Hour}
}

func (c *stepClock) now() time.Time {
	c.current = c.current.Add(c.step)
	return c.current
}

func strPtr(s string) *string {
	return &s
}
