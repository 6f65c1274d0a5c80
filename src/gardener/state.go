package gardener

import (
	"sync"
	"sync/atomic"
)

// State captures the lifecycle of a Gardener: Uninitialized, Initialized, or
// Disposed. Transitions only go forward.
type State uint32

const (
	// Uninitialized is the state of a new Gardener
	Uninitialized State = iota
	// Initialized is receiving and sweeping
	Initialized
	// Disposed has stopped every background routine
	Disposed
)

// String ...
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initialized:
		return "Initialized"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (s *state) getState() State {
	stateAddr := (*uint32)(&s.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (s *state) setState(st State) {
	stateAddr := (*uint32)(&s.state)
	atomic.StoreUint32(stateAddr, uint32(st))
}

// Start a goroutine and add it to waitgroup
func (s *state) goFunc(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

func (s *state) waitRoutines() {
	s.wg.Wait()
}
