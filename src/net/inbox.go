package net

import (
	"strings"
	"sync"

	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

// inbox is the receive path shared by all transports. It turns raw payloads
// into nodes and pushes them to the consumer channel.
type inbox struct {
	mu       sync.RWMutex
	ownID    string
	closed   bool
	consumer chan node.Node
	logger   *logrus.Entry
}

func newInbox(queueSize int, logger *logrus.Entry) *inbox {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &inbox{
		consumer: make(chan node.Node, queueSize),
		logger:   logger,
	}
}

// SetOwnID implements the Transport interface.
func (i *inbox) SetOwnID(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ownID = id
}

// Consumer implements the Transport interface.
func (i *inbox) Consumer() <-chan node.Node {
	return i.consumer
}

// decodeMessage converts a payload into a node. The discovery message becomes
// a node carrying the message as id. ok is false when the payload should be
// dropped.
func decodeMessage(payload []byte) (n node.Node, ok bool) {
	message := strings.Trim(string(payload), "\x00")

	if message == DiscoveryMessage {
		return node.Node{ID: DiscoveryMessage, Kind: node.Other}, true
	}

	n, err := node.Unmarshal([]byte(message))
	if err != nil {
		return node.Node{}, false
	}

	return n, true
}

// receive decodes a payload and delivers it unless it is malformed, it is an
// echo of our own node, or the inbox is closed. It never blocks.
func (i *inbox) receive(payload []byte) {
	n, ok := decodeMessage(payload)
	if !ok {
		i.logger.WithField("payload", string(payload)).Debug("Dropping malformed message")
		return
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return
	}

	if i.ownID != "" && n.ID == i.ownID {
		return
	}

	select {
	case i.consumer <- n:
	default:
		i.logger.WithField("id", n.ID).Warn("Consumer queue full, dropping message")
	}
}

// close stops deliveries and closes the consumer channel. It is safe to call
// more than once.
func (i *inbox) close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}

	i.closed = true
	close(i.consumer)
}
