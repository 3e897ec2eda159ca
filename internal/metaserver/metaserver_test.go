package metaserver

import (
	"context"
	"testing"
	"time"

	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/metadata"
	"github.com/pfs-io/pfs/internal/wire"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	cat := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 4)
	return NewServer(cat)
}

// connectClient registers clientID on server over an in-memory pipe
// (the registration request is a READ [0,0] on "__register__") and
// returns the client's end of the stream, so the test can keep issuing
// REQUEST/ACK traffic.
func connectClient(ctx context.Context, t *testing.T, server *Server, clientID string) *wire.Stream {
	t.Helper()
	clientSide, serverSide := wire.NewPipe()
	go server.HandleStream(ctx, serverSide)

	require.NoError(t, clientSide.Send(&wire.TokenMessage{
		ClientID: clientID, Action: wire.ActionRequestToken, FileName: "__register__",
	}))
	_, err := clientSide.Recv()
	require.NoError(t, err)
	return clientSide
}

func TestNonConflictingGrantRoundTrips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestServer()
	client := connectClient(ctx, t, server, "client-a")

	require.NoError(t, client.Send(&wire.TokenMessage{
		ClientID: "client-a", FileName: "f", Action: wire.ActionRequestToken,
		Mode: wire.ModeRead, Start: 0, End: 9, RequestID: 1,
	}))

	resp, err := client.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.ActionGrant, resp.Action)
	require.Empty(t, resp.Err)
	require.Equal(t, int64(0), resp.Start)
	require.Equal(t, int64(9), resp.End)
}

func TestConflictingWriteTriggersRevokeAndAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestServer()
	owner := connectClient(ctx, t, server, "owner")
	requester := connectClient(ctx, t, server, "requester")

	require.NoError(t, owner.Send(&wire.TokenMessage{
		ClientID: "owner", FileName: "f", Action: wire.ActionRequestToken,
		Mode: wire.ModeWrite, Start: 0, End: 99, RequestID: 1,
	}))
	grant, err := owner.Recv()
	require.NoError(t, err)
	require.Empty(t, grant.Err)

	done := make(chan *wire.TokenMessage, 1)
	go func() {
		require.NoError(t, requester.Send(&wire.TokenMessage{
			ClientID: "requester", FileName: "f", Action: wire.ActionRequestToken,
			Mode: wire.ModeWrite, Start: 50, End: 59, RequestID: 1,
		}))
		resp, err := requester.Recv()
		require.NoError(t, err)
		done <- resp
	}()

	revoke, err := owner.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.ActionRevoke, revoke.Action)
	require.Equal(t, int64(50), revoke.Start)
	require.Equal(t, int64(59), revoke.End)

	require.NoError(t, owner.Send(&wire.TokenMessage{
		ClientID: "owner", FileName: "f", Action: wire.ActionAck,
		Start: revoke.Start, End: revoke.End,
	}))

	select {
	case resp := <-done:
		require.Empty(t, resp.Err)
		require.Equal(t, int64(50), resp.Start)
		require.Equal(t, int64(59), resp.End)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for requester's grant")
	}
}

func TestCloseReleasesTokensForThatFileOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestServer()
	client := connectClient(ctx, t, server, "client-a")

	require.NoError(t, client.Send(&wire.TokenMessage{
		ClientID: "client-a", FileName: "f", Action: wire.ActionRequestToken,
		Mode: wire.ModeWrite, Start: 0, End: 9, RequestID: 1,
	}))
	_, err := client.Recv()
	require.NoError(t, err)

	require.NoError(t, client.Send(&wire.TokenMessage{
		ClientID: "client-a", FileName: "f", Action: wire.ActionRequestClose,
	}))
	_, err = client.Recv()
	require.NoError(t, err)

	require.False(t, server.HasTokens("f"))
	require.True(t, server.HasTokens("__register__"))
}
