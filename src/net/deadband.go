package net

import (
	"math"
	"sync"
)

// deadBand remembers the last position transmitted by a transport and filters
// out moves too small to be worth sending. It is not reset on reconnection.
type deadBand struct {
	sync.Mutex
	threshold float64
	sent      bool
	lastX     float64
	lastY     float64
}

func newDeadBand(threshold float64) *deadBand {
	return &deadBand{threshold: threshold}
}

// admit reports whether a position should be transmitted and, if so, records
// it as the last transmitted position. The first position is always admitted.
func (d *deadBand) admit(x, y float64, force bool) bool {
	d.Lock()
	defer d.Unlock()

	if !force && d.sent &&
		math.Abs(x-d.lastX) < d.threshold &&
		math.Abs(y-d.lastY) < d.threshold {
		return false
	}

	d.sent = true
	d.lastX = x
	d.lastY = y

	return true
}

// last returns the last transmitted position, if any.
func (d *deadBand) last() (float64, float64, bool) {
	d.Lock()
	defer d.Unlock()
	return d.lastX, d.lastY, d.sent
}
