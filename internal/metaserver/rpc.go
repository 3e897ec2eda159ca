package metaserver

import (
	"net"
	"net/rpc"
	"time"

	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/metadata"
)

// CreateFileArgs/Reply through DeleteFileArgs/Reply are the unary
// metadata operations, exposed over net/rpc for the same reason
// internal/storagenode uses it: no protoc in this module.

type CreateFileArgs struct {
	Name        string
	StripeWidth int
}

type CreateFileReply struct {
	Metadata metadata.FileMetadata
}

type FetchMetadataArgs struct {
	Name string
}

type FetchMetadataReply struct {
	Metadata metadata.FileMetadata
}

type UpdateMetadataArgs struct {
	Name         string
	ReportedSize int64
	Mtime        time.Time
}

type UpdateMetadataReply struct {
	Metadata metadata.FileMetadata
}

type DeleteFileArgs struct {
	Name string
}

type DeleteFileReply struct{}

// CatalogService adapts Server's catalog and engine to the net/rpc
// calling convention.
type CatalogService struct {
	server *Server
}

func NewCatalogService(server *Server) *CatalogService {
	return &CatalogService{server: server}
}

func (c *CatalogService) CreateFile(args *CreateFileArgs, reply *CreateFileReply) error {
	fm, err := c.server.catalog.CreateFile(args.Name, args.StripeWidth)
	if err != nil {
		return err
	}
	reply.Metadata = *fm
	return nil
}

func (c *CatalogService) FetchMetadata(args *FetchMetadataArgs, reply *FetchMetadataReply) error {
	fm, err := c.server.catalog.Fetch(args.Name)
	if err != nil {
		return err
	}
	reply.Metadata = *fm
	return nil
}

func (c *CatalogService) UpdateMetadata(args *UpdateMetadataArgs, reply *UpdateMetadataReply) error {
	fm, err := c.server.catalog.Update(args.Name, args.ReportedSize, args.Mtime)
	if err != nil {
		return err
	}
	reply.Metadata = *fm
	return nil
}

func (c *CatalogService) DeleteFile(args *DeleteFileArgs, reply *DeleteFileReply) error {
	return c.server.catalog.Delete(args.Name, c.server.HasTokens)
}

// ServeRPC registers the catalog service on a new net/rpc server
// and accepts connections on listenAddr until the listener is closed.
func ServeRPC(listenAddr string, server *Server) error {
	svc := NewCatalogService(server)
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Metadata", svc); err != nil {
		return err
	}

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Infof("metadata service unary RPC listening on %s", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go rpcServer.ServeConn(conn)
	}
}
