package netwatch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/common"
)

type fakeAddrs struct {
	sync.Mutex
	current string
	err     error
}

func (f *fakeAddrs) set(current string, err error) {
	f.Lock()
	defer f.Unlock()
	f.current = current
	f.err = err
}

func (f *fakeAddrs) list() (string, error) {
	f.Lock()
	defer f.Unlock()
	return f.current, f.err
}

func expectChange(t *testing.T, m Monitor) {
	t.Helper()
	select {
	case <-m.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change")
	}
}

func expectNoChange(t *testing.T, m Monitor) {
	t.Helper()
	select {
	case <-m.Changes():
		t.Fatal("unexpected change")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollingMonitor(t *testing.T) {
	addrs := &fakeAddrs{current: "10.0.0.2/24"}

	m := newPollingMonitor(5*time.Millisecond, addrs.list, common.NewTestEntry(t, common.TestLogLevel))
	defer m.Stop()

	expectNoChange(t, m)

	addrs.set("10.0.0.3/24", nil)
	expectChange(t, m)
	expectNoChange(t, m)

	// failed listings are not changes
	addrs.set("", errors.New("boom"))
	expectNoChange(t, m)

	addrs.set("10.0.0.3/24", nil)
	expectNoChange(t, m)

	addrs.set("192.168.1.5/24", nil)
	expectChange(t, m)
}

func TestPollingMonitorCoalesces(t *testing.T) {
	addrs := &fakeAddrs{current: "a"}

	m := newPollingMonitor(2*time.Millisecond, addrs.list, common.NewTestEntry(t, common.TestLogLevel))
	defer m.Stop()

	for _, a := range []string{"b", "c", "d"} {
		addrs.set(a, nil)
		time.Sleep(20 * time.Millisecond)
	}

	expectChange(t, m)
	expectNoChange(t, m)
}

func TestPollingMonitorStop(t *testing.T) {
	m := NewPollingMonitor(time.Millisecond, common.NewTestEntry(t, common.TestLogLevel))

	m.Stop()
	m.Stop()
}
