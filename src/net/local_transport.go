package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

const (
	maxDatagramSize = 8192
	multicastTTL    = 1
)

// packetConn is the part of net.PacketConn used by the LocalTransport.
type packetConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

type listenFunc func(group *net.UDPAddr) (packetConn, error)

// listenMulticast binds the group port, joins the group on the system-assigned
// interface, and enables loopback so that gardens on the same host see each
// other.
func listenMulticast(group *net.UDPAddr) (packetConn, error) {
	conn, err := net.ListenPacket("udp4", group.String())
	if err != nil {
		return nil, err
	}

	p := ipv4.NewPacketConn(conn)

	if err := p.JoinGroup(nil, group); err != nil {
		conn.Close()
		return nil, err
	}

	if err := p.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, err
	}

	if err := p.SetMulticastTTL(multicastTTL); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// LocalTransport implements the Transport interface with UDP multicast. Each
// (re)opened socket is a new generation; errors reported by an older
// generation are ignored.
type LocalTransport struct {
	*inbox

	band    *deadBand
	group   *net.UDPAddr
	listen  listenFunc
	backoff time.Duration
	logger  *logrus.Entry

	mu               sync.Mutex
	conn             packetConn
	generation       uint64
	reconnectPending bool
	closed           bool

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewLocalTransport creates a multicast transport for the given group. The
// transport does not join the group until Open is called.
func NewLocalTransport(
	groupAddr string,
	backoff time.Duration,
	deadBand float64,
	queueSize int,
	logger *logrus.Entry,
) (*LocalTransport, error) {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	logger = logger.WithField("transport", Local.String())

	group, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad multicast group %q: %v", ErrInvalidKind, groupAddr, err)
	}

	if !group.IP.IsMulticast() {
		return nil, fmt.Errorf("%w: %s is not a multicast address", ErrInvalidKind, groupAddr)
	}

	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}

	return &LocalTransport{
		inbox:      newInbox(queueSize, logger),
		band:       newDeadBand(deadBand),
		group:      group,
		listen:     listenMulticast,
		backoff:    backoff,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Kind implements the Transport interface.
func (t *LocalTransport) Kind() Kind {
	return Local
}

// Open implements the Transport interface. It joins the multicast group.
func (t *LocalTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	if t.conn != nil {
		return nil
	}

	return t.openLocked()
}

// openLocked creates a new channel generation and starts reading from it.
func (t *LocalTransport) openLocked() error {
	conn, err := t.listen(t.group)
	if err != nil {
		return fmt.Errorf("joining multicast group %s: %w", t.group, err)
	}

	t.generation++
	t.conn = conn

	t.wg.Add(1)
	go t.readLoop(conn, t.generation)

	t.logger.WithFields(logrus.Fields{
		"group":      t.group.String(),
		"generation": t.generation,
	}).Debug("Joined multicast group")

	return nil
}

// closeConnLocked retires the current generation.
func (t *LocalTransport) closeConnLocked() {
	if t.conn == nil {
		return
	}

	// bump the generation first so the read loop exits quietly
	t.generation++
	if err := t.conn.Close(); err != nil {
		t.logger.WithError(err).Debug("Closing multicast socket")
	}
	t.conn = nil
}

// Reconnect implements the Transport interface. When the channel cannot be
// reopened another attempt is scheduled after the backoff.
func (t *LocalTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	t.closeConnLocked()

	if err := t.openLocked(); err != nil {
		t.scheduleReconnectLocked()
		return err
	}

	return nil
}

// Send implements the Transport interface.
func (t *LocalTransport) Send(n node.Node, force bool) error {
	if n.Kind == node.Default {
		return ErrDefaultNode
	}

	if !t.band.admit(n.X, n.Y, force) {
		return nil
	}

	raw, err := encode(n)
	if err != nil {
		return err
	}

	return t.write(raw)
}

// RequestDiscovery implements the Transport interface.
func (t *LocalTransport) RequestDiscovery() error {
	return t.write([]byte(DiscoveryMessage))
}

func (t *LocalTransport) write(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	gen := t.generation
	closed := t.closed
	if !closed && conn == nil {
		t.scheduleReconnectLocked()
	}
	t.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}

	if conn == nil {
		return ErrNotConnected
	}

	t.logger.WithField("payload", string(payload)).Debug("SEND")

	if _, err := conn.WriteTo(payload, t.group); err != nil {
		t.handleError(gen, err)
		return fmt.Errorf("%w: %v", ErrSendLost, err)
	}

	return nil
}

func (t *LocalTransport) readLoop(conn packetConn, gen uint64) {
	defer t.wg.Done()

	buf := make([]byte, maxDatagramSize)

	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			t.handleError(gen, err)
			return
		}

		t.logger.WithFields(logrus.Fields{
			"from":    from,
			"payload": string(buf[:n]),
		}).Debug("RECV")

		t.receive(buf[:n])
	}
}

// handleError applies the channel error policy. A socket closed while it is
// still the live generation is recreated straight away. Any other error is
// logged and a reconnection is scheduled after the backoff.
func (t *LocalTransport) handleError(gen uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || gen != t.generation {
		return
	}

	if errors.Is(err, net.ErrClosed) {
		t.conn = nil
		if oerr := t.openLocked(); oerr != nil {
			t.logger.WithError(oerr).Error("Recreating multicast channel")
			t.scheduleReconnectLocked()
		}
		return
	}

	t.logger.WithError(err).Error("Multicast channel error")
	t.scheduleReconnectLocked()
}

// scheduleReconnectLocked reconnects after the backoff on its own goroutine.
// Pending reconnections are coalesced.
func (t *LocalTransport) scheduleReconnectLocked() {
	if t.reconnectPending || t.closed {
		return
	}
	t.reconnectPending = true

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		timer := time.NewTimer(t.backoff)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-t.shutdownCh:
			return
		}

		t.mu.Lock()
		t.reconnectPending = false
		t.mu.Unlock()

		t.logger.WithField("backoff", t.backoff).Info("Reconnecting multicast channel")

		// a failed attempt schedules the next one
		if err := t.Reconnect(); err != nil && !errors.Is(err, ErrTransportClosed) {
			t.logger.WithError(err).Error("Reconnect failed")
		}
	}()
}

// Close implements the Transport interface. No node is delivered after Close
// returns.
func (t *LocalTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.shutdownCh)
	t.closeConnLocked()
	t.mu.Unlock()

	t.wg.Wait()
	t.inbox.close()

	return nil
}
