package metaserver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/metadata"
	"github.com/pfs-io/pfs/internal/metrics"
	"github.com/pfs-io/pfs/internal/token"
	"github.com/pfs-io/pfs/internal/wire"
)

// Server is the metadata service process: the file catalog, the token
// engine, and every client's open token stream.
type Server struct {
	catalog  *metadata.Catalog
	engine   *token.Engine
	counters *metrics.MSCounters

	mu      sync.Mutex
	clients map[string]*clientActor
}

func NewServer(catalog *metadata.Catalog) *Server {
	s := &Server{
		catalog:  catalog,
		counters: &metrics.MSCounters{},
		clients:  make(map[string]*clientActor),
	}
	s.engine = token.NewEngine(&revokerAdapter{lookup: s.actorFor})
	s.engine.AttachCounters(s.counters)
	return s
}

// Metrics returns a snapshot of this server's grant/revoke/conflict
// counters.
func (s *Server) Metrics() metrics.MSSnapshot {
	return s.counters.Snapshot()
}

func (s *Server) actorFor(clientID string) (*clientActor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.clients[clientID]
	return a, ok
}

// ServeStreams accepts token-stream connections on listenAddr until the
// listener is closed or ctx is done. Each connection's first message
// must be a REQUEST carrying the client's ID, which registers it before
// any token operations are served.
func (s *Server) ServeStreams(ctx context.Context, listenAddr string) error {
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}
	logger.Infof("metadata service token stream listening on %s", l.Addr())

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	s.HandleStream(ctx, wire.NewStream(conn))
}

// HandleStream runs the registration handshake and the client's actor
// loop against an already-framed stream. ServeStreams calls it for
// every accepted TCP connection; it is also exported so in-process
// tests (and an in-process client/server wiring, if one is ever added)
// can drive it directly over wire.NewPipe() instead of a real socket.
func (s *Server) HandleStream(ctx context.Context, stream *wire.Stream) {
	first, err := stream.Recv()
	if err != nil {
		logger.Warnf("token stream closed before registration: %v", err)
		stream.Close()
		return
	}
	clientID := first.ClientID

	actor := newClientActor(ctx, clientID, stream)
	s.mu.Lock()
	s.clients[clientID] = actor
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, clientID)
		s.mu.Unlock()
		s.engine.Shutdown(clientID)
		stream.Close()
		logger.Infof("client %s disconnected, tokens released", clientID)
	}()

	// The registration message is itself a real request (or close); feed
	// it through the same dispatch path used for everything after it.
	resp := s.dispatch(ctx, first)
	if err := stream.Send(resp); err != nil {
		logger.Warnf("sending registration response to %s: %v", clientID, err)
		return
	}

	if err := actor.run(ctx, s.dispatch); err != nil {
		logger.Infof("token stream for client %s ended: %v", clientID, err)
	}
}

func (s *Server) dispatch(ctx context.Context, msg *wire.TokenMessage) *wire.TokenMessage {
	switch msg.Action {
	case wire.ActionRequestToken:
		grant, err := s.engine.RequestToken(ctx, msg.ClientID, msg.FileName, msg.Mode, msg.Start, msg.End)
		if err != nil {
			return &wire.TokenMessage{
				ClientID: msg.ClientID, FileName: msg.FileName, Action: wire.ActionGrant,
				RequestID: msg.RequestID, Err: err.Error(),
			}
		}
		return &wire.TokenMessage{
			ClientID: msg.ClientID, FileName: grant.FileName, Action: wire.ActionGrant,
			Mode: grant.Mode, Start: grant.Start, End: grant.End, RequestID: msg.RequestID,
		}

	case wire.ActionRequestClose:
		s.engine.Close(msg.ClientID, msg.FileName)
		return &wire.TokenMessage{
			ClientID: msg.ClientID, FileName: msg.FileName, Action: wire.ActionGrant,
			RequestID: msg.RequestID,
		}

	default:
		return &wire.TokenMessage{
			ClientID: msg.ClientID, FileName: msg.FileName, Action: wire.ActionGrant,
			RequestID: msg.RequestID, Err: fmt.Sprintf("unexpected action %v", msg.Action),
		}
	}
}

// HasTokens exposes the engine's BUSY check to the unary RPC surface's
// DeleteFile handler.
func (s *Server) HasTokens(file string) bool {
	return s.engine.HasTokens(file)
}
