package node

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/ugorji/go/codec"
)

// ErrMalformed is returned by Unmarshal when the payload is not a valid Node.
var ErrMalformed = errors.New("malformed node payload")

// Marshal returns the wire encoding of the node. Only ID, X, Y and Tag are
// encoded, and Tag is left out when empty.
func Marshal(n Node) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(&n); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal decodes a wire payload. Decoding always yields a node of Kind
// Other because whatever arrives on the wire was authored elsewhere. Any
// failure, including a payload without an Id, is reported as an error
// wrapping ErrMalformed.
func Unmarshal(data []byte) (Node, error) {
	var n Node

	if len(bytes.TrimSpace(data)) == 0 {
		return n, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(&n); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if n.ID == "" {
		return Node{}, fmt.Errorf("%w: missing Id", ErrMalformed)
	}

	n.Kind = Other
	n.LastUpdated = time.Time{}

	return n, nil
}
