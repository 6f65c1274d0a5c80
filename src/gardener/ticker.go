package gardener

import (
	"sync"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// LivenessTicker signals on TickCh every interval until Shutdown.
type LivenessTicker struct {
	timerFactory timerFactory
	interval     time.Duration
	tickCh       chan struct{} //sends a signal to listening process
	shutdownCh   chan struct{} //receives instruction to exit Run loop
	shutdownOnce sync.Once
}

// NewLivenessTicker ...
func NewLivenessTicker(interval time.Duration) *LivenessTicker {
	return newLivenessTicker(interval, time.After)
}

func newLivenessTicker(interval time.Duration, factory timerFactory) *LivenessTicker {
	return &LivenessTicker{
		timerFactory: factory,
		interval:     interval,
		tickCh:       make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

// TickCh returns the channel receiving ticks.
func (c *LivenessTicker) TickCh() <-chan struct{} {
	return c.tickCh
}

// Run blocks until Shutdown. The next timer is only armed once the previous
// tick was consumed, so a slow sweep never queues ticks.
func (c *LivenessTicker) Run() {
	timer := c.timerFactory(c.interval)
	for {
		select {
		case <-timer:
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
			timer = c.timerFactory(c.interval)
		case <-c.shutdownCh:
			return
		}
	}
}

// Shutdown stops Run. It is safe to call more than once.
func (c *LivenessTicker) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)
	})
}
