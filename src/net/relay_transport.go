package net

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/mosaicnetworks/nodegarden/src/relay"
	"github.com/sirupsen/logrus"
)

// RelayTransport implements the Transport interface through a relay server.
// It publishes by calling relay.SendProcedure and receives by subscribing to
// relay.ReceivedTopic.
type RelayTransport struct {
	*inbox

	band      *deadBand
	routerURL string
	config    client.Config
	timeout   time.Duration
	logger    *logrus.Entry

	mu        sync.Mutex
	client    *client.Client
	connected bool
	closed    bool

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// NewRelayTransport creates a transport for the relay at addr. The connection
// is established by Open.
func NewRelayTransport(
	addr string,
	realm string,
	timeout time.Duration,
	deadBand float64,
	queueSize int,
	logger *logrus.Entry,
) *RelayTransport {

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	logger = logger.WithField("transport", Relay.String())

	if realm == "" {
		realm = relay.DefaultRealm
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	routerURL := addr
	if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
		routerURL = fmt.Sprintf("ws://%s", addr)
	}

	return &RelayTransport{
		inbox:     newInbox(queueSize, logger),
		band:      newDeadBand(deadBand),
		routerURL: routerURL,
		config: client.Config{
			Realm:           realm,
			ResponseTimeout: timeout,
			Logger:          logger,
		},
		timeout:    timeout,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// Kind implements the Transport interface.
func (t *RelayTransport) Kind() Kind {
	return Relay
}

// Open implements the Transport interface. An unreachable relay is not an
// error: the connection is retried by Reconnect and by the next Send.
func (t *RelayTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	if t.connected {
		return nil
	}

	if err := t.connectLocked(); err != nil {
		t.logger.WithError(err).Warn("Relay unreachable, will retry")
	}

	return nil
}

// Connected reports whether the transport currently holds a live connection.
func (t *RelayTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *RelayTransport) connectLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	cli, err := client.ConnectNet(ctx, t.routerURL, t.config)
	if err != nil {
		return err
	}

	if err := cli.Subscribe(relay.ReceivedTopic, t.eventHandler, nil); err != nil {
		cli.Close()
		return err
	}

	t.client = cli
	t.connected = true

	t.wg.Add(1)
	go t.watch(cli)

	t.logger.WithField("url", t.routerURL).Debug("Connected to relay")

	return nil
}

// watch marks the transport down when the router drops the connection.
func (t *RelayTransport) watch(cli *client.Client) {
	defer t.wg.Done()

	select {
	case <-cli.Done():
	case <-t.shutdownCh:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == cli && !t.closed {
		t.connected = false
		t.logger.Warn("Lost connection to relay")
	}
}

func (t *RelayTransport) reconnectLocked() error {
	if t.client != nil {
		old := t.client
		t.client = nil
		if err := old.Close(); err != nil {
			t.logger.WithError(err).Debug("Closing relay client")
		}
	}
	t.connected = false

	return t.connectLocked()
}

// Reconnect implements the Transport interface.
func (t *RelayTransport) Reconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	return t.reconnectLocked()
}

// Send implements the Transport interface.
func (t *RelayTransport) Send(n node.Node, force bool) error {
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

	return t.call(string(raw))
}

// RequestDiscovery implements the Transport interface.
func (t *RelayTransport) RequestDiscovery() error {
	return t.call(DiscoveryMessage)
}

// call relays one message. When the transport is down, or when the call
// fails, the transport reconnects and the message is lost.
func (t *RelayTransport) call(message string) error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}

	if !t.connected {
		err := t.reconnectLocked()
		t.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return ErrNotConnected
	}

	cli := t.client
	t.mu.Unlock()

	t.logger.WithField("payload", message).Debug("SEND")

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	_, err := cli.Call(ctx, relay.SendProcedure, nil, wamp.List{message}, nil, nil)
	if err == nil {
		return nil
	}

	t.logger.WithError(err).Warn("Relay send failed, reconnecting")

	t.mu.Lock()
	if !t.closed && t.client == cli {
		if rerr := t.reconnectLocked(); rerr != nil {
			t.logger.WithError(rerr).Error("Reconnect failed")
		}
	}
	t.mu.Unlock()

	return fmt.Errorf("%w: %v", ErrSendLost, err)
}

// eventHandler is called by the WAMP client for every relayed message.
func (t *RelayTransport) eventHandler(event *wamp.Event) {
	if len(event.Arguments) == 0 {
		return
	}

	message, ok := wamp.AsString(event.Arguments[0])
	if !ok {
		t.logger.Debug("Dropping non-string relay event")
		return
	}

	t.logger.WithField("payload", message).Debug("RECV")

	t.receive([]byte(message))
}

// Close implements the Transport interface. No node is delivered after Close
// returns.
func (t *RelayTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.shutdownCh)

	var err error
	if t.client != nil {
		err = t.client.Close()
		t.client = nil
	}
	t.connected = false
	t.mu.Unlock()

	t.wg.Wait()
	t.inbox.close()

	return err
}
