package relay

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/node"
)

// Entry is a relayed node as recorded in the Log.
type Entry struct {
	DeviceID string    `codec:"id"`
	X        float64   `codec:"x"`
	Y        float64   `codec:"y"`
	Tag      string    `codec:"tag"`
	Received time.Time `codec:"received"`
}

// NewEntry creates a log entry for a node received at the given time.
func NewEntry(n node.Node, received time.Time) Entry {
	return Entry{
		DeviceID: n.ID,
		X:        n.X,
		Y:        n.Y,
		Tag:      n.Tag,
		Received: received,
	}
}

// Log records the nodes going through the relay.
type Log interface {
	// Append records an entry
	Append(Entry) error

	// Entries returns all recorded entries, oldest first
	Entries() ([]Entry, error)

	// Close releases the resources held by the log
	Close() error
}

// InmemLog is a Log kept in memory.
type InmemLog struct {
	sync.RWMutex
	entries []Entry
}

// NewInmemLog ...
func NewInmemLog() *InmemLog {
	return &InmemLog{}
}

// Append implements the Log interface.
func (l *InmemLog) Append(e Entry) error {
	l.Lock()
	defer l.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

// Entries implements the Log interface.
func (l *InmemLog) Entries() ([]Entry, error) {
	l.RLock()
	defer l.RUnlock()
	res := make([]Entry, len(l.entries))
	copy(res, l.entries)
	return res, nil
}

// Close implements the Log interface.
func (l *InmemLog) Close() error {
	return nil
}
