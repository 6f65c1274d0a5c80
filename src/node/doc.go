// Package node defines the record shared between gardens.
//
// A Node is an identity, a position and an optional free-form Tag. Only those
// four fields travel on the wire; the Kind of a node and the time it was last
// updated are local bookkeeping. The wire format is a compact JSON object:
//
//	{"Id":"4f0c...","X":120.5,"Y":48,"Tag":"{\"ac\":\"#FFFF0000\",\"p\":true}"}
//
// where Tag is omitted altogether when empty. Gardens built on other platforms
// already speak this format, so it must not change.
//
// The Tag itself is opaque to the synchronisation layer. The application
// shipped with the garden uses it to carry a PingTag, an accent colour plus a
// ping flag, which has its own tolerant codec in this package.
package node
