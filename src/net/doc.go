// Package net implements the transports used by gardens to exchange nodes.
//
// Every transport implements the Transport interface: it serialises outgoing
// nodes, filters out imperceptible moves with a dead-band, delivers incoming
// nodes on its Consumer channel, and knows how to re-establish its channel
// after a failure. There are three implementations:
//
// - Local: UDP multicast on the local network
//
// - Relay: publish/subscribe through a hosted WAMP relay (see the relay
// package)
//
// - Inmem: in-process fan-out, used for testing
//
// Local
//
// The LocalTransport joins a fixed multicast group (224.224.224.224:54545 by
// default) and sends one message per datagram. If the socket is closed under
// its feet it is recreated immediately. Any other socket error is logged and a
// reconnection is attempted after a fixed backoff.
//
// Relay
//
// The RelayTransport connects to a relay server over WebSockets, calls the
// relay's send procedure to publish, and subscribes to the relay's received
// topic. The relay echoes every message back to its sender, so the transport
// drops records carrying its own id. A failed send marks the connection down
// and reconnects straight away; the message that failed is lost.
//
// Discovery
//
// RequestDiscovery sends the bare string "WIEB" ("where is everybody"). A
// transport receiving it hands a synthetic node with that id and zero
// coordinates to its consumer, which is expected to answer by announcing
// itself.
package net
