// Package metaserver is the metadata service process: the file catalog
// (internal/metadata), the token engine (internal/token), and the
// per-client long-lived token stream.
package metaserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/pfs-io/pfs/internal/logger"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/token"
	"github.com/pfs-io/pfs/internal/wire"
)

// revokeKey identifies a specific in-flight revoke so an incoming ACK
// can be matched to the waiter that issued it: ACKs are matched by
// (file_name, start, end) equality against the revoke this client was
// last sent for that range.
type revokeKey struct {
	file  string
	start int64
	end   int64
}

// clientActor is the server's per-client state for one open token
// stream: a reader task that consumes REQUEST/CLOSE/ACK, and a writer
// task that drains an outbox of GRANT/REVOKE messages. Using an
// outbox channel instead of writing directly from the reader means a
// REVOKE destined for this client can be enqueued by some other
// client's RequestToken call while this client's own REQUEST is still
// being processed, without either task blocking the other.
type clientActor struct {
	clientID string
	stream   *wire.Stream
	outbox   chan *wire.TokenMessage

	pendingMu sync.Mutex
	pending   map[revokeKey]chan error

	bundle *syncutil.Bundle
}

func newClientActor(ctx context.Context, clientID string, stream *wire.Stream) *clientActor {
	return &clientActor{
		clientID: clientID,
		stream:   stream,
		outbox:   make(chan *wire.TokenMessage, 16),
		pending:  make(map[revokeKey]chan error),
		bundle:   syncutil.NewBundle(ctx),
	}
}

// revoke sends a REVOKE for [start,end] in mode to this client and
// blocks until it is ACKed or ctx is done.
func (a *clientActor) revoke(ctx context.Context, file string, mode wire.Mode, start, end int64) error {
	ch := make(chan error, 1)
	key := revokeKey{file: file, start: start, end: end}

	a.pendingMu.Lock()
	a.pending[key] = ch
	a.pendingMu.Unlock()

	select {
	case a.outbox <- &wire.TokenMessage{ClientID: a.clientID, FileName: file, Action: wire.ActionRevoke, Mode: mode, Start: start, End: end}:
	case <-ctx.Done():
		a.pendingMu.Lock()
		delete(a.pending, key)
		a.pendingMu.Unlock()
		return ctx.Err()
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *clientActor) deliverAck(file string, start, end int64, errMsg string) {
	key := revokeKey{file: file, start: start, end: end}

	a.pendingMu.Lock()
	ch, ok := a.pending[key]
	delete(a.pending, key)
	a.pendingMu.Unlock()

	if !ok {
		logger.Warnf("unmatched ACK from client %s for %s[%d,%d]", a.clientID, file, start, end)
		return
	}

	var err error
	if errMsg != "" {
		err = pfserrors.Transport(fmt.Errorf("%s", errMsg))
	}
	ch <- err
}

// run starts the writer task and the reader task on the actor's bundle,
// returning when both have ended (the stream is closed or ctx is done). dispatch handles one
// REQUEST/CLOSE message and is supplied by Server so this file stays
// free of catalog/engine wiring concerns.
func (a *clientActor) run(ctx context.Context, dispatch func(ctx context.Context, msg *wire.TokenMessage) *wire.TokenMessage) error {
	a.bundle.Add(func(ctx context.Context) error {
		for {
			select {
			case msg, ok := <-a.outbox:
				if !ok {
					return nil
				}
				if err := a.stream.Send(msg); err != nil {
					return fmt.Errorf("sending to client %s: %w", a.clientID, err)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	a.bundle.Add(func(ctx context.Context) error {
		defer close(a.outbox)
		for {
			msg, err := a.stream.Recv()
			if err != nil {
				return err
			}

			switch msg.Action {
			case wire.ActionAck:
				a.deliverAck(msg.FileName, msg.Start, msg.End, msg.Err)
			case wire.ActionRequestToken, wire.ActionRequestClose:
				go func(msg *wire.TokenMessage) {
					resp := dispatch(ctx, msg)
					select {
					case a.outbox <- resp:
					case <-ctx.Done():
					}
				}(msg)
			default:
				logger.Warnf("unexpected action %v from client %s", msg.Action, a.clientID)
			}
		}
	})

	return a.bundle.Join()
}

var _ token.Revoker = (*revokerAdapter)(nil)

// revokerAdapter lets Server implement token.Revoker by looking up the
// owning client's actor and forwarding to its revoke method.
type revokerAdapter struct {
	lookup func(clientID string) (*clientActor, bool)
}

func (r *revokerAdapter) Revoke(ctx context.Context, ownerClientID, fileName string, mode wire.Mode, start, end int64) error {
	actor, ok := r.lookup(ownerClientID)
	if !ok {
		return pfserrors.Transport(fmt.Errorf("no open stream for client %s", ownerClientID))
	}
	return actor.revoke(ctx, fileName, mode, start, end)
}
