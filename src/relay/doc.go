// Package relay implements the hosted relay through which gardens that cannot
// reach each other by multicast exchange nodes.
//
// The relay is a WAMP router. It exposes a single procedure, SendProcedure,
// taking one string argument, and re-publishes every message it receives on
// ReceivedTopic. Every connected client subscribes to that topic, the sender
// included, so clients have to filter out their own echoes.
//
// Every relayed node is also appended to a Log. The log is a side effect:
// failing to write it never prevents delivery. Two implementations are
// provided, an in-memory one and a Badger-backed one.
package relay

const (
	// DefaultRealm is the WAMP realm gardens join on the relay
	DefaultRealm = "nodegarden"

	// SendProcedure is the procedure called by clients to relay a message
	SendProcedure = "node.send"

	// ReceivedTopic is the topic on which relayed messages are published
	ReceivedTopic = "node.received"

	// ErrRelayFailed is the WAMP error returned when a message could not be
	// relayed
	ErrRelayFailed = "io.nodegarden.relay_failed"
)
