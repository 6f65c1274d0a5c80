package gardener

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/nodegarden/src/net"
	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyInitialized is returned by a second call to Initialize
	ErrAlreadyInitialized = errors.New("gardener already initialized")

	// ErrNotInitialized is returned by operations requiring an initialized
	// Gardener
	ErrNotInitialized = errors.New("gardener not initialized")

	// ErrSelfNodeExists is returned when adding a second Self node
	ErrSelfNodeExists = errors.New("self node already exists")

	// ErrKindMismatch is returned when the settings ask for a transport kind
	// other than the Gardener's transport
	ErrKindMismatch = errors.New("transport kind mismatch")
)

// Gardener is the registry of nodes of a garden. It is safe for concurrent
// use.
type Gardener struct {
	// state is accessed atomically
	state

	conf   *Config
	trans  net.Transport
	logger *logrus.Entry

	// lifecycle serialises Initialize and Dispose
	lifecycle sync.Mutex

	nodeLock sync.RWMutex
	nodes    []*node.Node
	settings Settings

	handlerLock sync.RWMutex
	handlers    []NodeChangedHandler

	ticker     *LivenessTicker
	shutdownCh chan struct{}
}

// New creates a Gardener sharing nodes through trans. The transport is opened
// by Initialize; closing it is left to the caller, after Dispose.
func New(conf *Config, trans net.Transport) *Gardener {
	if conf.DeviceID == "" {
		conf.DeviceID = uuid.New().String()
	}

	if conf.LivenessInterval <= 0 {
		conf.LivenessInterval = DefaultLivenessInterval
	}

	if conf.StaleTimeout <= 0 {
		conf.StaleTimeout = DefaultStaleTimeout
	}

	if conf.Now == nil {
		conf.Now = time.Now
	}

	logger := conf.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	return &Gardener{
		conf:       conf,
		trans:      trans,
		logger:     logger.WithField("device_id", conf.DeviceID),
		shutdownCh: make(chan struct{}),
	}
}

// Initialize checks the settings against the transport, opens the transport,
// and starts the background routines: the inbound loop, the liveness ticker
// when enabled, and the network monitor when configured. It can only be
// called once and leaves nothing behind when it fails.
func (g *Gardener) Initialize(s Settings) error {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	if st := g.getState(); st != Uninitialized {
		g.logger.WithField("state", st).Error("Initialize called twice")
		return ErrAlreadyInitialized
	}

	if !s.CommKind.Valid() {
		return fmt.Errorf("%w: %v", net.ErrInvalidKind, s.CommKind)
	}

	if s.CommKind != g.trans.Kind() {
		return fmt.Errorf("%w: settings ask for %v, transport is %v",
			ErrKindMismatch, s.CommKind, g.trans.Kind())
	}

	if err := g.trans.Open(); err != nil {
		return fmt.Errorf("opening %v transport: %w", g.trans.Kind(), err)
	}

	g.nodeLock.Lock()
	g.settings = s
	g.nodeLock.Unlock()

	g.setState(Initialized)

	g.goFunc(g.inboundLoop)

	if s.EnableLivenessSweep {
		g.ticker = NewLivenessTicker(g.conf.LivenessInterval)
		g.goFunc(g.ticker.Run)
		g.goFunc(g.livenessLoop)
	}

	if g.conf.Monitor != nil {
		g.goFunc(g.monitorLoop)
	}

	g.logger.WithFields(logrus.Fields{
		"transport":      g.trans.Kind(),
		"liveness_sweep": s.EnableLivenessSweep,
	}).Debug("Gardener initialized")

	return nil
}

// Dispose stops the background routines. The registry is kept, so a disposed
// Gardener still answers Nodes. No notification fires after Dispose returns.
// Dispose must not be called from a NodeChangedHandler.
func (g *Gardener) Dispose() {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	prev := g.getState()
	if prev == Disposed {
		return
	}

	// checked under nodeLock before every registry mutation
	g.nodeLock.Lock()
	g.setState(Disposed)
	g.nodeLock.Unlock()

	if g.conf.Monitor != nil {
		g.conf.Monitor.Stop()
	}

	if prev != Initialized {
		return
	}

	close(g.shutdownCh)

	if g.ticker != nil {
		g.ticker.Shutdown()
	}

	g.waitRoutines()

	g.logger.Debug("Gardener disposed")
}

// State returns the lifecycle state.
func (g *Gardener) State() State {
	return g.getState()
}

// Settings returns the settings passed to Initialize.
func (g *Gardener) Settings() Settings {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()
	return g.settings
}

// OnNodeChanged registers a handler. Handlers run on the Gardener's own
// routines, so a handler must not call Dispose directly: Dispose waits for
// those routines. A handler that needs to dispose does it on a new goroutine.
func (g *Gardener) OnNodeChanged(h NodeChangedHandler) {
	g.handlerLock.Lock()
	defer g.handlerLock.Unlock()
	g.handlers = append(g.handlers, h)
}

// AddSelfNode creates this device's node and announces it. Only one Self node
// can exist. A failed announcement is logged but does not fail the call: the
// node is in the registry and the liveness sweep announces it again.
func (g *Gardener) AddSelfNode(x, y float64) error {
	g.nodeLock.Lock()

	if g.getState() == Disposed {
		g.nodeLock.Unlock()
		return fmt.Errorf("adding self node: gardener %v", Disposed)
	}

	if self := g.selfLocked(); self != nil {
		g.nodeLock.Unlock()
		g.logger.WithField("id", self.ID).Error("Self node already exists")
		return ErrSelfNodeExists
	}

	self := node.NewNode(g.conf.DeviceID, x, y, node.Self)
	self.LastUpdated = g.conf.Now()
	g.nodes = append(g.nodes, self)
	snapshot := *self

	g.nodeLock.Unlock()

	g.trans.SetOwnID(snapshot.ID)

	if err := g.trans.Send(snapshot, false); err != nil {
		g.logger.WithError(err).Warn("Announcing self node")
	}

	return nil
}

// AddDefaultNode adds a local filler node with a random id and returns that
// id. Default nodes are never sent and never evicted.
func (g *Gardener) AddDefaultNode(x, y float64) string {
	n := node.NewNode(uuid.New().String(), x, y, node.Default)
	n.LastUpdated = g.conf.Now()

	g.nodeLock.Lock()
	defer g.nodeLock.Unlock()

	g.nodes = append(g.nodes, n)

	return n.ID
}

// RemoveDefaultNode removes a Default node. It reports false if there is no
// Default node with that id.
func (g *Gardener) RemoveDefaultNode(id string) bool {
	g.nodeLock.Lock()
	defer g.nodeLock.Unlock()

	for i, n := range g.nodes {
		if n.ID == id && n.Kind == node.Default {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			return true
		}
	}

	return false
}

// UpdateSelfNodePosition moves the Self node and sends it. Nothing happens if
// there is no Self node, or if the position did not change and force is not
// set. The transport may still skip the send if the move is within its
// dead-band.
func (g *Gardener) UpdateSelfNodePosition(x, y float64, tag string, force bool) error {
	g.nodeLock.Lock()

	self := g.selfLocked()
	if self == nil || g.getState() == Disposed {
		g.nodeLock.Unlock()
		return nil
	}

	if !force && self.X == x && self.Y == y {
		g.nodeLock.Unlock()
		return nil
	}

	self.X = x
	self.Y = y
	self.Tag = tag
	snapshot := *self

	g.nodeLock.Unlock()

	return g.trans.Send(snapshot, force)
}

// ClearSelfPing lowers the ping flag carried in the Self node's tag. The
// change goes out with the next send.
func (g *Gardener) ClearSelfPing() {
	g.nodeLock.Lock()
	defer g.nodeLock.Unlock()

	self := g.selfLocked()
	if self == nil || !self.HasTag() {
		return
	}

	tag := node.ParsePingTag(self.Tag)
	tag.Ping = false
	self.Tag = tag.String()
}

// SelfNodeID returns the id of the Self node, or "" if there is none.
func (g *Gardener) SelfNodeID() string {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()

	if self := g.selfLocked(); self != nil {
		return self.ID
	}
	return ""
}

// Nodes returns a copy of the registry.
func (g *Gardener) Nodes() []node.Node {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()

	res := make([]node.Node, len(g.nodes))
	for i, n := range g.nodes {
		res[i] = *n
	}
	return res
}

// Node returns a copy of the node with the given id.
func (g *Gardener) Node(id string) (node.Node, bool) {
	g.nodeLock.RLock()
	defer g.nodeLock.RUnlock()

	if n := g.findLocked(id); n != nil {
		return *n, true
	}
	return node.Node{}, false
}

// RequestDiscovery asks every peer to announce itself.
func (g *Gardener) RequestDiscovery() error {
	if g.getState() != Initialized {
		return ErrNotInitialized
	}

	return g.trans.RequestDiscovery()
}

// Reconnect reconnects the transport. It does nothing unless the Gardener is
// initialized.
func (g *Gardener) Reconnect() error {
	if g.getState() != Initialized {
		return nil
	}

	g.logger.Debug("Reconnecting transport")

	return g.trans.Reconnect()
}

func (g *Gardener) inboundLoop() {
	consumer := g.trans.Consumer()
	for {
		select {
		case n, ok := <-consumer:
			if !ok {
				g.logger.Debug("Transport closed, inbound loop exiting")
				return
			}
			g.applyInbound(n)
		case <-g.shutdownCh:
			return
		}
	}
}

func (g *Gardener) livenessLoop() {
	for {
		select {
		case <-g.ticker.TickCh():
			g.liveness()
		case <-g.shutdownCh:
			return
		}
	}
}

func (g *Gardener) monitorLoop() {
	changes := g.conf.Monitor.Changes()
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := g.Reconnect(); err != nil {
				g.logger.WithError(err).Error("Reconnecting after network change")
			}
		case <-g.shutdownCh:
			return
		}
	}
}

// applyInbound applies a node received from the transport. A discovery
// request is answered with a forced send of the Self node. Any other node is
// added or updated in place, keeping its kind, and observers are notified.
func (g *Gardener) applyInbound(n node.Node) {
	if n.ID == net.DiscoveryMessage {
		g.logger.Debug("Discovery request")
		g.sendSelf()
		return
	}

	now := g.conf.Now()

	g.nodeLock.Lock()

	if g.getState() == Disposed {
		g.nodeLock.Unlock()
		return
	}

	if existing := g.findLocked(n.ID); existing != nil {
		existing.X = n.X
		existing.Y = n.Y
		existing.Tag = n.Tag
		existing.LastUpdated = now
	} else {
		n.Kind = node.Other
		n.LastUpdated = now
		g.nodes = append(g.nodes, &n)

		g.logger.WithField("id", n.ID).Debug("New node")
	}

	g.nodeLock.Unlock()

	g.notify(n.ID)
}

// liveness re-announces the Self node, then evicts the Other nodes not heard
// from within the stale timeout.
func (g *Gardener) liveness() {
	g.sendSelf()

	for _, id := range g.sweep() {
		g.notify(id)
	}
}

func (g *Gardener) sweep() []string {
	cutoff := g.conf.Now().Add(-g.conf.StaleTimeout)

	g.nodeLock.Lock()
	defer g.nodeLock.Unlock()

	if g.getState() == Disposed {
		return nil
	}

	removed := []string{}
	kept := g.nodes[:0]
	for _, n := range g.nodes {
		if n.Kind == node.Other && !n.LastUpdated.After(cutoff) {
			removed = append(removed, n.ID)
			continue
		}
		kept = append(kept, n)
	}

	// release evicted pointers held beyond the new length
	for i := len(kept); i < len(g.nodes); i++ {
		g.nodes[i] = nil
	}
	g.nodes = kept

	if len(removed) > 0 {
		g.logger.WithField("ids", removed).Debug("Evicted stale nodes")
	}

	return removed
}

// sendSelf force-sends the Self node, if any.
func (g *Gardener) sendSelf() {
	g.nodeLock.RLock()
	self := g.selfLocked()
	if self == nil {
		g.nodeLock.RUnlock()
		return
	}
	snapshot := *self
	g.nodeLock.RUnlock()

	if err := g.trans.Send(snapshot, true); err != nil {
		g.logger.WithError(err).Warn("Sending self node")
	}
}

func (g *Gardener) notify(id string) {
	g.handlerLock.RLock()
	handlers := make([]NodeChangedHandler, len(g.handlers))
	copy(handlers, g.handlers)
	g.handlerLock.RUnlock()

	for _, h := range handlers {
		h.NodeChanged(id)
	}
}

func (g *Gardener) selfLocked() *node.Node {
	for _, n := range g.nodes {
		if n.Kind == node.Self {
			return n
		}
	}
	return nil
}

func (g *Gardener) findLocked(id string) *node.Node {
	for _, n := range g.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
