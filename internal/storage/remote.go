package storage

import (
	"context"
	"fmt"
	"net/rpc"

	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/storagenode"
)

// RemoteNode is a Node backed by a net/rpc connection to a storage node
// process (internal/storagenode.Serve).
type RemoteNode struct {
	client *rpc.Client
}

// DialNode connects to a storage node listening at addr.
func DialNode(addr string) (*RemoteNode, error) {
	client, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, pfserrors.Transport(fmt.Errorf("dialing storage node %s: %w", addr, err))
	}
	return &RemoteNode{client: client}, nil
}

func (n *RemoteNode) ReadBlock(ctx context.Context, file string, offset int64, size int) ([]byte, error) {
	args := &storagenode.ReadBlockArgs{File: file, Offset: offset, Size: size}
	reply := &storagenode.ReadBlockReply{}
	if err := n.client.Call("StorageNode.ReadBlock", args, reply); err != nil {
		return nil, pfserrors.Transport(fmt.Errorf("ReadBlock(%s): %w", file, err))
	}
	return reply.Data, nil
}

func (n *RemoteNode) WriteBlock(ctx context.Context, file string, offset int64, data []byte) error {
	args := &storagenode.WriteBlockArgs{File: file, Offset: offset, Data: data}
	reply := &storagenode.WriteBlockReply{}
	if err := n.client.Call("StorageNode.WriteBlock", args, reply); err != nil {
		return pfserrors.Transport(fmt.Errorf("WriteBlock(%s): %w", file, err))
	}
	return nil
}

func (n *RemoteNode) DeleteFile(ctx context.Context, file string) error {
	args := &storagenode.DeleteFileArgs{File: file}
	reply := &storagenode.DeleteFileReply{}
	if err := n.client.Call("StorageNode.DeleteFile", args, reply); err != nil {
		return pfserrors.Transport(fmt.Errorf("DeleteFile(%s): %w", file, err))
	}
	return nil
}

func (n *RemoteNode) Close() error {
	return n.client.Close()
}

var _ Node = (*RemoteNode)(nil)
var _ Node = (*storagenode.Store)(nil)
