package node

import (
	"fmt"
	"time"
)

// Kind tells where a Node came from: Self is this device's own node, Other
// was learned from a remote peer, and Default is a locally synthesised filler
// which never leaves the device.
type Kind uint32

const (
	// Self is the node owned by this device.
	Self Kind = iota
	// Other is a node learned from the network.
	Other
	// Default is a local filler node.
	Default
)

// String ...
func (k Kind) String() string {
	switch k {
	case Self:
		return "Self"
	case Other:
		return "Other"
	case Default:
		return "Default"
	default:
		return "Unknown"
	}
}

// Node is the unit of shared state. LastUpdated and Kind are not part of the
// wire payload.
type Node struct {
	ID  string  `codec:"Id"`
	X   float64 `codec:"X"`
	Y   float64 `codec:"Y"`
	Tag string  `codec:"Tag,omitempty"`

	LastUpdated time.Time `codec:"-"`
	Kind        Kind      `codec:"-"`
}

// NewNode creates a Node with the given identity and position.
func NewNode(id string, x, y float64, kind Kind) *Node {
	return &Node{
		ID:   id,
		X:    x,
		Y:    y,
		Kind: kind,
	}
}

// HasTag reports whether the node carries a Tag.
func (n *Node) HasTag() bool {
	return n.Tag != ""
}

func (n *Node) String() string {
	return fmt.Sprintf("%s: %v,%v", n.ID, n.X, n.Y)
}
