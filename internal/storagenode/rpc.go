package storagenode

import (
	"context"
	"net"
	"net/rpc"

	"github.com/pfs-io/pfs/internal/logger"
)

// Generating real protobuf/gRPC stubs for this request/response surface
// would require invoking protoc, which is off limits for this module;
// net/rpc gives the same "register a Go method, call it from another
// process" shape without code generation, so the reference storage node
// and its client (internal/storage.RemoteNode) use it directly.

type ReadBlockArgs struct {
	File   string
	Offset int64
	Size   int
}

type ReadBlockReply struct {
	Data []byte
}

type WriteBlockArgs struct {
	File   string
	Offset int64
	Data   []byte
}

type WriteBlockReply struct{}

type DeleteFileArgs struct {
	File string
}

type DeleteFileReply struct{}

// Service adapts a *Store to the net/rpc calling convention.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) ReadBlock(args *ReadBlockArgs, reply *ReadBlockReply) error {
	data, err := s.store.ReadBlock(context.Background(), args.File, args.Offset, args.Size)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

func (s *Service) WriteBlock(args *WriteBlockArgs, reply *WriteBlockReply) error {
	return s.store.WriteBlock(context.Background(), args.File, args.Offset, args.Data)
}

func (s *Service) DeleteFile(args *DeleteFileArgs, reply *DeleteFileReply) error {
	return s.store.DeleteFile(context.Background(), args.File)
}

// Serve registers store on a new net/rpc server and accepts
// connections on listenAddr until the listener is closed.
func Serve(listenAddr string, store *Store) error {
	svc := NewService(store)
	server := rpc.NewServer()
	if err := server.RegisterName("StorageNode", svc); err != nil {
		return err
	}

	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	logger.Infof("storage node listening on %s", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go server.ServeConn(conn)
	}
}
