package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/wire"
)

// RevokeHandler applies one revoke to local state (cache + token set)
// before the stream client ACKs it back to the metadata service.
type RevokeHandler func(file string, mode wire.Mode, start, end int64) error

// Grant is the result of a successful token request, mirroring
// internal/token.Grant on the client side of the wire.
type Grant struct {
	Mode  wire.Mode
	Start int64
	End   int64
}

// TokenClient is this client's side of the long-lived token stream. A
// single sendMu enforces the required discipline: never issue REQUEST
// N+1 before REQUEST N's GRANT has arrived. Incoming REVOKEs are
// handled as they arrive, independent of whatever REQUEST (if any) is
// currently outstanding.
type TokenClient struct {
	clientID string
	stream   *wire.Stream
	onRevoke RevokeHandler

	sendMu sync.Mutex

	nextRequestID atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan *wire.TokenMessage
}

func NewTokenClient(clientID string, stream *wire.Stream, onRevoke RevokeHandler) *TokenClient {
	return &TokenClient{
		clientID: clientID,
		stream:   stream,
		onRevoke: onRevoke,
		pending:  make(map[uint64]chan *wire.TokenMessage),
	}
}

// Run drives the stream's read loop until it errors out (including a
// clean close, which the caller should treat as this agent shutting
// down). It must run for the lifetime of the TokenClient.
func (tc *TokenClient) Run(ctx context.Context) error {
	for {
		msg, err := tc.stream.Recv()
		if err != nil {
			tc.failAllPending(err)
			return err
		}

		switch msg.Action {
		case wire.ActionGrant:
			tc.deliver(msg)

		case wire.ActionRevoke:
			var errMsg string
			if err := tc.onRevoke(msg.FileName, msg.Mode, msg.Start, msg.End); err != nil {
				errMsg = err.Error()
			}
			ack := &wire.TokenMessage{
				ClientID: tc.clientID, FileName: msg.FileName,
				Action: wire.ActionAck, Mode: msg.Mode, Start: msg.Start, End: msg.End, Err: errMsg,
			}
			if err := tc.stream.Send(ack); err != nil {
				return fmt.Errorf("acking revoke: %w", err)
			}

		default:
			// Unexpected from this side of the protocol; ignore rather
			// than tearing down the stream over it.
		}
	}
}

func (tc *TokenClient) deliver(msg *wire.TokenMessage) {
	tc.pendingMu.Lock()
	ch, ok := tc.pending[msg.RequestID]
	delete(tc.pending, msg.RequestID)
	tc.pendingMu.Unlock()

	if ok {
		ch <- msg
	}
}

func (tc *TokenClient) failAllPending(err error) {
	tc.pendingMu.Lock()
	defer tc.pendingMu.Unlock()
	for id, ch := range tc.pending {
		ch <- &wire.TokenMessage{Err: err.Error()}
		delete(tc.pending, id)
	}
}

// RequestToken sends a REQUEST and blocks for its GRANT or error.
func (tc *TokenClient) RequestToken(ctx context.Context, file string, mode wire.Mode, start, end int64) (Grant, error) {
	tc.sendMu.Lock()
	defer tc.sendMu.Unlock()

	resp, err := tc.roundTrip(ctx, &wire.TokenMessage{
		ClientID: tc.clientID, FileName: file, Action: wire.ActionRequestToken,
		Mode: mode, Start: start, End: end,
	})
	if err != nil {
		return Grant{}, err
	}
	if resp.Err != "" {
		return Grant{}, pfserrors.Transport(fmt.Errorf("%s", resp.Err))
	}
	return Grant{Mode: resp.Mode, Start: resp.Start, End: resp.End}, nil
}

// RequestClose sends the explicit CLOSE and waits for it to be
// acknowledged by the metadata service.
func (tc *TokenClient) RequestClose(ctx context.Context, file string) error {
	tc.sendMu.Lock()
	defer tc.sendMu.Unlock()

	resp, err := tc.roundTrip(ctx, &wire.TokenMessage{
		ClientID: tc.clientID, FileName: file, Action: wire.ActionRequestClose,
	})
	if err != nil {
		return err
	}
	if resp.Err != "" {
		return pfserrors.Transport(fmt.Errorf("%s", resp.Err))
	}
	return nil
}

func (tc *TokenClient) roundTrip(ctx context.Context, req *wire.TokenMessage) (*wire.TokenMessage, error) {
	id := tc.nextRequestID.Add(1)
	req.RequestID = id

	ch := make(chan *wire.TokenMessage, 1)
	tc.pendingMu.Lock()
	tc.pending[id] = ch
	tc.pendingMu.Unlock()

	if err := tc.stream.Send(req); err != nil {
		tc.pendingMu.Lock()
		delete(tc.pending, id)
		tc.pendingMu.Unlock()
		return nil, pfserrors.Transport(err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		tc.pendingMu.Lock()
		delete(tc.pending, id)
		tc.pendingMu.Unlock()
		return nil, ctx.Err()
	}
}
