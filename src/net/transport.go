package net

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

// DiscoveryMessage is the bare payload asking every peer to announce itself.
const DiscoveryMessage = "WIEB"

// Default transport values.
const (
	DefaultGroupAddr        = "224.224.224.224:54545"
	DefaultRelayAddr        = "127.0.0.1:8090"
	DefaultTimeout          = 5 * time.Second
	DefaultReconnectBackoff = 5 * time.Second
	DefaultDeadBand         = 5.0
	DefaultQueueSize        = 64
)

var (
	// ErrInvalidKind is returned when asked for a transport kind that does not
	// exist. It is a configuration error.
	ErrInvalidKind = errors.New("invalid transport kind")

	// ErrTransportClosed is returned by operations on a closed transport.
	ErrTransportClosed = errors.New("transport closed")

	// ErrNotConnected is returned when a message could not be sent because the
	// channel is down.
	ErrNotConnected = errors.New("transport not connected")

	// ErrSendLost is returned when a send failed. The message is not retried.
	ErrSendLost = errors.New("send lost")

	// ErrDefaultNode is returned when asked to send a Default node. Those
	// never leave the device.
	ErrDefaultNode = errors.New("default nodes are not sent")
)

// Transport provides an interface for network transports to allow a garden to
// share nodes with other gardens.
type Transport interface {
	// Kind returns the kind of channel used by the transport
	Kind() Kind

	// Open establishes the channel and starts receiving
	Open() error

	// SetOwnID records the id of this device's node so that echoes of our own
	// messages are not delivered
	SetOwnID(id string)

	// Send serialises and transmits a node. Unless force is set, the send is
	// skipped when the node moved less than the dead-band in both axes since
	// the last transmission. An admitted send counts as transmitted even when
	// it fails, ErrNotConnected included.
	Send(n node.Node, force bool) error

	// RequestDiscovery asks every peer to announce itself
	RequestDiscovery() error

	// Reconnect tears down and re-establishes the channel
	Reconnect() error

	// Consumer returns the channel on which incoming nodes are delivered. It
	// is closed when the transport is closed.
	Consumer() <-chan node.Node

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}

// Kind identifies a transport implementation.
type Kind uint32

const (
	// Local is UDP multicast on the local network
	Local Kind = iota
	// Relay goes through a hosted relay server
	Relay
	// Inmem stays in the process
	Inmem
)

// String ...
func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Relay:
		return "relay"
	case Inmem:
		return "inmem"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Valid reports whether k names an existing transport.
func (k Kind) Valid() bool {
	return k <= Inmem
}

// ParseKind parses a transport kind. "udp" and "web" are accepted as aliases
// of local and relay.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "udp":
		return Local, nil
	case "relay", "web":
		return Relay, nil
	case "inmem":
		return Inmem, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Options gathers the settings of every transport kind. Only the ones relevant
// to the selected kind are used.
type Options struct {
	// GroupAddr is the multicast group IP:PORT of the Local transport
	GroupAddr string

	// RelayAddr is the address of the relay server. Either a ws:// or wss://
	// URL, or a bare host:port which is dialed with ws://
	RelayAddr string

	// RelayRealm is the WAMP realm joined on the relay
	RelayRealm string

	// Timeout bounds relay connections and calls
	Timeout time.Duration

	// ReconnectBackoff is the delay before reconnecting the Local transport
	// after a channel error
	ReconnectBackoff time.Duration

	// DeadBand is the minimum move, in both axes, for a non-forced send to go
	// out
	DeadBand float64

	// QueueSize is the capacity of the Consumer channel
	QueueSize int

	// Hub is the in-process hub joined by Inmem transports
	Hub *InmemHub
}

// DefaultOptions returns the default transport options.
func DefaultOptions() Options {
	return Options{
		GroupAddr:        DefaultGroupAddr,
		RelayAddr:        DefaultRelayAddr,
		RelayRealm:       "nodegarden",
		Timeout:          DefaultTimeout,
		ReconnectBackoff: DefaultReconnectBackoff,
		DeadBand:         DefaultDeadBand,
		QueueSize:        DefaultQueueSize,
	}
}

// NewTransport creates a transport of the given kind. The transport is not
// opened. An unknown kind fails with ErrInvalidKind.
func NewTransport(kind Kind, opts Options, logger *logrus.Entry) (Transport, error) {
	switch kind {
	case Local:
		return NewLocalTransport(
			opts.GroupAddr,
			opts.ReconnectBackoff,
			opts.DeadBand,
			opts.QueueSize,
			logger,
		)
	case Relay:
		return NewRelayTransport(
			opts.RelayAddr,
			opts.RelayRealm,
			opts.Timeout,
			opts.DeadBand,
			opts.QueueSize,
			logger,
		), nil
	case Inmem:
		if opts.Hub == nil {
			return nil, fmt.Errorf("%w: inmem transport requires a hub", ErrInvalidKind)
		}
		return NewInmemTransport(opts.Hub, opts.DeadBand, opts.QueueSize, logger), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, kind)
	}
}

// encode prepares a node for the wire.
func encode(n node.Node) ([]byte, error) {
	if n.Kind == node.Default {
		return nil, ErrDefaultNode
	}
	return node.Marshal(n)
}
