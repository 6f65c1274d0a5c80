package net

import (
	"sync"

	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

// InmemHub fans messages out to every attached InmemTransport, the sender
// included, the way the relay does.
type InmemHub struct {
	sync.RWMutex
	members map[*InmemTransport]struct{}
}

// NewInmemHub ...
func NewInmemHub() *InmemHub {
	return &InmemHub{
		members: make(map[*InmemTransport]struct{}),
	}
}

func (h *InmemHub) attach(t *InmemTransport) {
	h.Lock()
	defer h.Unlock()
	h.members[t] = struct{}{}
}

func (h *InmemHub) detach(t *InmemTransport) {
	h.Lock()
	defer h.Unlock()
	delete(h.members, t)
}

func (h *InmemHub) broadcast(payload []byte) {
	h.RLock()
	defer h.RUnlock()
	for m := range h.members {
		m.receive(payload)
	}
}

// InmemTransport implements the Transport interface, to allow gardens to be
// tested in-memory without going over a network. It keeps a record of every
// message it transmitted.
type InmemTransport struct {
	*inbox

	band   *deadBand
	hub    *InmemHub
	logger *logrus.Entry

	mu         sync.Mutex
	attached   bool
	closed     bool
	reconnects int
	sent       []string
}

// NewInmemTransport creates a transport on the given hub.
func NewInmemTransport(hub *InmemHub, deadBand float64, queueSize int, logger *logrus.Entry) *InmemTransport {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	logger = logger.WithField("transport", Inmem.String())

	return &InmemTransport{
		inbox:  newInbox(queueSize, logger),
		band:   newDeadBand(deadBand),
		hub:    hub,
		logger: logger,
	}
}

// Kind implements the Transport interface.
func (t *InmemTransport) Kind() Kind {
	return Inmem
}

// Open implements the Transport interface.
func (t *InmemTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	t.hub.attach(t)
	t.attached = true

	return nil
}

// Reconnect implements the Transport interface.
func (t *InmemTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	t.hub.detach(t)
	t.hub.attach(t)
	t.attached = true
	t.reconnects++

	return nil
}

// Reconnects returns the number of times Reconnect succeeded.
func (t *InmemTransport) Reconnects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconnects
}

// Send implements the Transport interface.
func (t *InmemTransport) Send(n node.Node, force bool) error {
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
func (t *InmemTransport) RequestDiscovery() error {
	return t.write([]byte(DiscoveryMessage))
}

func (t *InmemTransport) write(payload []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if !t.attached {
		t.mu.Unlock()
		return ErrNotConnected
	}
	t.sent = append(t.sent, string(payload))
	t.mu.Unlock()

	t.hub.broadcast(payload)

	return nil
}

// Sent returns a copy of every payload transmitted so far.
func (t *InmemTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	res := make([]string, len(t.sent))
	copy(res, t.sent)
	return res
}

// Close implements the Transport interface.
func (t *InmemTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.attached = false
	t.mu.Unlock()

	t.hub.detach(t)
	t.inbox.close()

	return nil
}
