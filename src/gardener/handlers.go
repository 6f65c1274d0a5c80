package gardener

// NodeChangedHandler is notified with the id of every node added, updated, or
// evicted. NodeChanged runs on a Gardener routine and must not call Dispose.
type NodeChangedHandler interface {
	NodeChanged(id string)
}

// NodeChangedFunc adapts a function to the NodeChangedHandler interface.
type NodeChangedFunc func(id string)

// NodeChanged implements the NodeChangedHandler interface.
func (f NodeChangedFunc) NodeChanged(id string) {
	f(id)
}
