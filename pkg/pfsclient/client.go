// Package pfsclient is the ergonomic client API: Init, Create, Open,
// Read, Write, Close, Delete, Fstat, Execstat, Finish. It owns the
// network connections and wraps internal/agent.CA, which implements
// the actual coherence state machines.
package pfsclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pfs-io/pfs/internal/agent"
	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/storage"
	"github.com/pfs-io/pfs/internal/wire"
)

// Client is one application's handle onto the file system.
type Client struct {
	ca *agent.CA

	metaConn   net.Conn
	streamConn net.Conn
	metaClient *agent.RPCMetaClient
	nodes      []*storage.RemoteNode

	streamErrOnce sync.Once
	streamErr     <-chan error
}

// Config is what Init needs to bring a client up: either a bootstrap
// file's parsed contents or addresses supplied directly.
type Config struct {
	MetaserverAddr    string
	MetaserverRPCAddr string
	StorageAddrs      []string
	BlockSizeBytes    int64
	CacheBlockCount   int
}

// Init pings every storage node in parallel before opening the token
// stream to the metadata service, refusing to come up at all if any
// storage node is unreachable. Init sends nothing on the stream; the
// metadata service registers the client when the first token request
// arrives on it.
func Init(ctx context.Context, cfg Config) (*Client, error) {
	if len(cfg.StorageAddrs) == 0 {
		return nil, pfserrors.InvalidArgument(fmt.Errorf("no storage node addresses configured"))
	}

	nodes, err := dialAndPingNodes(cfg.StorageAddrs)
	if err != nil {
		return nil, err
	}

	metaClient, err := agent.DialMetaClient(cfg.MetaserverRPCAddr)
	if err != nil {
		closeNodes(nodes)
		return nil, err
	}

	streamConn, err := net.Dial("tcp", cfg.MetaserverAddr)
	if err != nil {
		closeNodes(nodes)
		metaClient.Close()
		return nil, pfserrors.Transport(fmt.Errorf("dialing token stream at %s: %w", cfg.MetaserverAddr, err))
	}

	clientID := uuid.NewString()

	ifaceNodes := make([]storage.Node, len(nodes))
	for i, n := range nodes {
		ifaceNodes[i] = n
	}
	router := storage.NewRouter(ifaceNodes)

	ca := agent.NewCA(clientID, clock.RealClock{}, cfg.BlockSizeBytes, metaClient, router, cfg.CacheBlockCount)
	errc := ca.AttachStream(ctx, wire.NewStream(streamConn))

	c := &Client{
		ca:         ca,
		streamConn: streamConn,
		metaClient: metaClient,
		nodes:      nodes,
		streamErr:  errc,
	}

	logger.Infof("client %s initialized against metadata service %s with %d storage node(s)", clientID, cfg.MetaserverAddr, len(nodes))
	return c, nil
}

func dialAndPingNodes(addrs []string) ([]*storage.RemoteNode, error) {
	nodes := make([]*storage.RemoteNode, len(addrs))
	errs := make([]error, len(addrs))

	var wg sync.WaitGroup
	for i, addr := range addrs {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			n, err := storage.DialNode(addr)
			if err != nil {
				errs[i] = err
				return
			}
			if err := n.DeleteFile(context.Background(), "__ping__"); err != nil {
				errs[i] = err
				return
			}
			nodes[i] = n
		}(i, addr)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			closeNodes(nodes)
			return nil, pfserrors.Transport(fmt.Errorf("pinging storage node %s: %w", addrs[i], err))
		}
	}
	return nodes, nil
}

func closeNodes(nodes []*storage.RemoteNode) {
	for _, n := range nodes {
		if n != nil {
			n.Close()
		}
	}
}

func (c *Client) Create(name string, stripeWidth int) error {
	return c.ca.Create(name, stripeWidth)
}

func (c *Client) Open(name string, mode agent.OpenMode) (int, error) {
	return c.ca.Open(name, mode)
}

func (c *Client) Read(ctx context.Context, fd int, offset int64, length int) ([]byte, error) {
	return c.ca.Read(ctx, fd, offset, length)
}

func (c *Client) Write(ctx context.Context, fd int, offset int64, data []byte) error {
	return c.ca.Write(ctx, fd, offset, data)
}

func (c *Client) Close(ctx context.Context, fd int) error {
	return c.ca.Close(ctx, fd)
}

func (c *Client) Delete(name string) error {
	return c.ca.Delete(name)
}

func (c *Client) Fstat(fd int) (size int64, mtime time.Time, err error) {
	return c.ca.Fstat(fd)
}

func (c *Client) Execstat() agent.Execstat {
	return c.ca.Execstat()
}

// Finish closes every still-open descriptor, then tears down every
// connection this client holds.
func (c *Client) Finish(ctx context.Context) error {
	err := c.ca.Finish(ctx)

	c.streamConn.Close()
	c.metaClient.Close()
	closeNodes(c.nodes)

	return err
}
