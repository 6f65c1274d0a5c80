package net

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/common"
	"github.com/mosaicnetworks/nodegarden/src/node"
)

// fakeConn is a packetConn fed by the test.
type fakeConn struct {
	packets chan []byte
	errs    chan error

	closeOnce sync.Once
	closedCh  chan struct{}

	mu      sync.Mutex
	written []string
	dst     []net.Addr
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		packets:  make(chan []byte, 16),
		errs:     make(chan error, 1),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	select {
	case p := <-c.packets:
		n := copy(b, p)
		return n, &net.UDPAddr{IP: net.IPv4(192, 168, 1, 7), Port: 54545}, nil
	case err := <-c.errs:
		return 0, nil, err
	case <-c.closedCh:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closedCh:
		return 0, net.ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(b))
	c.dst = append(c.dst, addr)
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closedCh) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]string, len(c.written))
	copy(res, c.written)
	return res
}

// fakeNetwork hands out a new fakeConn on every listen.
type fakeNetwork struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
}

func (f *fakeNetwork) listen(group *net.UDPAddr) (packetConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeNetwork) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeNetwork) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func newTestLocal(t *testing.T, backoff time.Duration) (*LocalTransport, *fakeNetwork) {
	trans, err := NewLocalTransport(DefaultGroupAddr, backoff, DefaultDeadBand, 16, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	network := &fakeNetwork{}
	trans.listen = network.listen

	if err := trans.Open(); err != nil {
		t.Fatal(err)
	}

	return trans, network
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestLocalTransportReceive(t *testing.T) {
	trans, network := newTestLocal(t, time.Second)
	defer trans.Close()

	trans.SetOwnID("me")

	conn := network.conn(0)
	conn.packets <- []byte(`{"Id":"me","X":1,"Y":1}`)
	conn.packets <- []byte("{not json")
	conn.packets <- []byte(`{"Id":"peer","X":3,"Y":4}` + "\x00\x00\x00")
	conn.packets <- []byte(DiscoveryMessage)

	n := expectNode(t, trans.Consumer(), "peer")
	if n.X != 3 || n.Y != 4 {
		t.Fatalf("unexpected node %#v", n)
	}

	expectNode(t, trans.Consumer(), DiscoveryMessage)
}

func TestLocalTransportSend(t *testing.T) {
	trans, network := newTestLocal(t, time.Second)
	defer trans.Close()

	self := node.Node{ID: "me", X: 10, Y: 10, Kind: node.Self}

	if err := trans.Send(self, false); err != nil {
		t.Fatal(err)
	}

	// jitter, suppressed
	self.X = 12
	if err := trans.Send(self, false); err != nil {
		t.Fatal(err)
	}

	if err := trans.RequestDiscovery(); err != nil {
		t.Fatal(err)
	}

	conn := network.conn(0)
	written := conn.Written()

	if len(written) != 2 {
		t.Fatalf("expected 2 datagrams, got %v", written)
	}

	sent, err := node.Unmarshal([]byte(written[0]))
	if err != nil {
		t.Fatal(err)
	}
	if sent.ID != "me" || sent.X != 10 {
		t.Fatalf("unexpected datagram %s", written[0])
	}

	if written[1] != DiscoveryMessage {
		t.Fatalf("expected bare discovery message, got %s", written[1])
	}

	if conn.dst[0].String() != DefaultGroupAddr {
		t.Fatalf("datagram should go to the group, not %v", conn.dst[0])
	}
}

func TestLocalTransportRecreatesClosedChannel(t *testing.T) {
	// a long backoff proves the recreation does not wait for it
	trans, network := newTestLocal(t, time.Hour)
	defer trans.Close()

	network.conn(0).Close()

	waitFor(t, "channel recreation", func() bool { return network.count() == 2 })

	network.conn(1).packets <- []byte(`{"Id":"peer","X":3,"Y":4}`)
	expectNode(t, trans.Consumer(), "peer")
}

func TestLocalTransportReconnectsAfterError(t *testing.T) {
	trans, network := newTestLocal(t, 20*time.Millisecond)
	defer trans.Close()

	network.conn(0).errs <- errors.New("network is unreachable")

	waitFor(t, "delayed reconnect", func() bool { return network.count() == 2 })

	if !network.conn(0).isClosed() {
		t.Fatal("old channel should be closed by the reconnect")
	}

	network.conn(1).packets <- []byte(`{"Id":"peer","X":3,"Y":4}`)
	expectNode(t, trans.Consumer(), "peer")
}

func TestLocalTransportRetriesFailedReconnect(t *testing.T) {
	trans, network := newTestLocal(t, 10*time.Millisecond)
	defer trans.Close()

	network.mu.Lock()
	network.fail = errors.New("no route")
	network.mu.Unlock()

	network.conn(0).errs <- errors.New("network is unreachable")

	// let a few attempts fail before the network comes back
	time.Sleep(50 * time.Millisecond)

	network.mu.Lock()
	network.fail = nil
	network.mu.Unlock()

	waitFor(t, "reconnect", func() bool { return network.count() == 2 })
}

func TestLocalTransportRetriesManualReconnect(t *testing.T) {
	trans, network := newTestLocal(t, 10*time.Millisecond)
	defer trans.Close()

	network.mu.Lock()
	network.fail = errors.New("no route")
	network.mu.Unlock()

	if err := trans.Reconnect(); err == nil {
		t.Fatal("expected Reconnect to fail")
	}

	if err := trans.RequestDiscovery(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	network.mu.Lock()
	network.fail = nil
	network.mu.Unlock()

	waitFor(t, "reconnect", func() bool { return network.count() == 2 })

	waitFor(t, "discovery", func() bool {
		return trans.RequestDiscovery() == nil
	})

	written := network.conn(1).Written()
	if len(written) == 0 || written[len(written)-1] != DiscoveryMessage {
		t.Fatalf("expected discovery on the new channel, got %v", written)
	}
}

func TestLocalTransportSendWhileDownReconnects(t *testing.T) {
	trans, network := newTestLocal(t, 10*time.Millisecond)
	defer trans.Close()

	network.mu.Lock()
	network.fail = errors.New("no route")
	network.mu.Unlock()

	// drop the channel without scheduling a retry
	trans.mu.Lock()
	trans.closeConnLocked()
	trans.mu.Unlock()

	self := node.Node{ID: "me", X: 10, Y: 10, Kind: node.Self}
	if err := trans.Send(self, true); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	network.mu.Lock()
	network.fail = nil
	network.mu.Unlock()

	waitFor(t, "reconnect", func() bool { return network.count() == 2 })
}

func TestLocalTransportReconnectIsQuiet(t *testing.T) {
	trans, network := newTestLocal(t, time.Hour)
	defer trans.Close()

	if err := trans.Reconnect(); err != nil {
		t.Fatal(err)
	}

	if network.count() != 2 {
		t.Fatalf("expected 2 channels, got %d", network.count())
	}

	// closing the old generation must not trigger another recreation
	time.Sleep(50 * time.Millisecond)

	if network.count() != 2 {
		t.Fatalf("expected 2 channels, got %d", network.count())
	}
}

func TestLocalTransportClose(t *testing.T) {
	trans, network := newTestLocal(t, 10*time.Millisecond)

	if err := trans.Close(); err != nil {
		t.Fatal(err)
	}

	if !network.conn(0).isClosed() {
		t.Fatal("channel should be closed")
	}

	if _, ok := <-trans.Consumer(); ok {
		t.Fatal("consumer should be closed")
	}

	if err := trans.RequestDiscovery(); !errors.Is(err, ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if network.count() != 1 {
		t.Fatal("closed transport should not reconnect")
	}

	if err := trans.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLocalTransportFailedSendMovesDeadBand(t *testing.T) {
	trans, network := newTestLocal(t, time.Hour)
	defer trans.Close()

	trans.mu.Lock()
	trans.closeConnLocked()
	trans.mu.Unlock()

	self := node.Node{ID: "me", X: 10, Y: 10, Kind: node.Self}
	if err := trans.Send(self, false); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	trans.mu.Lock()
	if err := trans.openLocked(); err != nil {
		trans.mu.Unlock()
		t.Fatal(err)
	}
	trans.mu.Unlock()

	self.X, self.Y = 11, 11
	if err := trans.Send(self, false); err != nil {
		t.Fatal(err)
	}

	if written := network.conn(1).Written(); len(written) != 0 {
		t.Fatalf("a move inside the dead-band should be skipped, got %v", written)
	}
}
