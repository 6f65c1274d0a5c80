// Package gardener keeps the list of nodes known to this device.
//
// A Gardener owns the registry of nodes: the device's own node (Self), the
// nodes learned from peers (Other), and local filler nodes (Default). It
// applies the nodes delivered by a net.Transport, answers discovery requests,
// periodically re-announces the Self node, and evicts peers that stopped
// announcing themselves.
//
// Observers registered with OnNodeChanged receive the id of every node that
// was added, updated, or evicted. The notification does not say which: the
// observer queries the registry, and an id that is no longer there was
// removed.
package gardener
