package agent

import (
	"net/rpc"
	"time"

	"github.com/pfs-io/pfs/internal/metadata"
	"github.com/pfs-io/pfs/internal/metaserver"
	"github.com/pfs-io/pfs/internal/pfserrors"
)

// MetaClient is the unary half of the metadata service surface the
// coherence agent needs: create/fetch/update/delete on the file
// catalog. It is separate from the token stream because it has no
// per-request ordering discipline of its own.
type MetaClient interface {
	CreateFile(name string, stripeWidth int) (*metadata.FileMetadata, error)
	Fetch(name string) (*metadata.FileMetadata, error)
	Update(name string, reportedSize int64, mtime time.Time) (*metadata.FileMetadata, error)
	Delete(name string) error
}

// RPCMetaClient implements MetaClient against a live metaserver
// process over net/rpc.
type RPCMetaClient struct {
	client *rpc.Client
}

// DialMetaClient connects to the metadata service's unary RPC listener
// (internal/metaserver.ServeRPC).
func DialMetaClient(addr string) (*RPCMetaClient, error) {
	client, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, pfserrors.Transport(err)
	}
	return &RPCMetaClient{client: client}, nil
}

func (m *RPCMetaClient) CreateFile(name string, stripeWidth int) (*metadata.FileMetadata, error) {
	args := &metaserver.CreateFileArgs{Name: name, StripeWidth: stripeWidth}
	reply := &metaserver.CreateFileReply{}
	if err := m.client.Call("Metadata.CreateFile", args, reply); err != nil {
		return nil, err
	}
	return &reply.Metadata, nil
}

func (m *RPCMetaClient) Fetch(name string) (*metadata.FileMetadata, error) {
	args := &metaserver.FetchMetadataArgs{Name: name}
	reply := &metaserver.FetchMetadataReply{}
	if err := m.client.Call("Metadata.FetchMetadata", args, reply); err != nil {
		return nil, err
	}
	return &reply.Metadata, nil
}

func (m *RPCMetaClient) Update(name string, reportedSize int64, mtime time.Time) (*metadata.FileMetadata, error) {
	args := &metaserver.UpdateMetadataArgs{Name: name, ReportedSize: reportedSize, Mtime: mtime}
	reply := &metaserver.UpdateMetadataReply{}
	if err := m.client.Call("Metadata.UpdateMetadata", args, reply); err != nil {
		return nil, err
	}
	return &reply.Metadata, nil
}

func (m *RPCMetaClient) Delete(name string) error {
	args := &metaserver.DeleteFileArgs{Name: name}
	reply := &metaserver.DeleteFileReply{}
	return m.client.Call("Metadata.DeleteFile", args, reply)
}

func (m *RPCMetaClient) Close() error {
	return m.client.Close()
}

var _ MetaClient = (*RPCMetaClient)(nil)
