// Package storage is the CA-side view of the striped storage nodes:
// the Node interface the coherence agent consumes, and the
// deterministic router that picks which node owns a given block.
package storage

import "context"

// Node is the interface the client coherence agent consumes for each
// storage node. It is intentionally tiny: everything about the node's
// on-disk layout, replication, and fault tolerance is out of scope.
type Node interface {
	// ReadBlock returns up to size bytes starting at offset. It may
	// return fewer bytes than requested only at EOF.
	ReadBlock(ctx context.Context, file string, offset int64, size int) ([]byte, error)

	// WriteBlock writes data at offset, creating the file if absent and
	// zero-filling any gap up to offset.
	WriteBlock(ctx context.Context, file string, offset int64, data []byte) error

	// DeleteFile removes the file's data on this node. Idempotent:
	// deleting a file that doesn't exist on this node returns nil.
	DeleteFile(ctx context.Context, file string) error
}

// Router routes a file's blocks across a fixed set of Nodes using a
// deterministic stripe recipe: block b lives on node b mod
// stripe_width. It never writes the same block to two nodes.
type Router struct {
	nodes []Node
}

func NewRouter(nodes []Node) *Router {
	return &Router{nodes: nodes}
}

// NodeCount is N, the number of configured storage nodes.
func (r *Router) NodeCount() int {
	return len(r.nodes)
}

// NodeForBlock returns the Node responsible for block b under the given
// stripe width.
func (r *Router) NodeForBlock(stripeWidth int, b int64) Node {
	return r.nodes[b%int64(stripeWidth)]
}
