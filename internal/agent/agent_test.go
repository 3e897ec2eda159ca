package agent

import (
	"context"
	"testing"
	"time"

	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/metadata"
	"github.com/pfs-io/pfs/internal/metaserver"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/pfs-io/pfs/internal/storage"
	"github.com/pfs-io/pfs/internal/storagenode"
	"github.com/pfs-io/pfs/internal/wire"
	"github.com/stretchr/testify/require"
)

// inProcessMetaClient satisfies MetaClient directly against a Catalog,
// skipping the net/rpc hop so these tests exercise the agent's logic
// without binding a socket.
type inProcessMetaClient struct {
	catalog *metadata.Catalog
}

func (m *inProcessMetaClient) CreateFile(name string, stripeWidth int) (*metadata.FileMetadata, error) {
	return m.catalog.CreateFile(name, stripeWidth)
}
func (m *inProcessMetaClient) Fetch(name string) (*metadata.FileMetadata, error) {
	return m.catalog.Fetch(name)
}
func (m *inProcessMetaClient) Update(name string, size int64, mtime time.Time) (*metadata.FileMetadata, error) {
	return m.catalog.Update(name, size, mtime)
}
func (m *inProcessMetaClient) Delete(name string) error {
	return nil
}

const testBlockSize = int64(4)

func newTestCA(t *testing.T, ctx context.Context, clientID string, server *metaserver.Server, catalog *metadata.Catalog) *CA {
	t.Helper()
	return newTestCAWithCache(t, ctx, clientID, server, catalog, 16)
}

func newTestCAWithCache(t *testing.T, ctx context.Context, clientID string, server *metaserver.Server, catalog *metadata.Catalog, cacheBlocks int) *CA {
	t.Helper()
	node := storagenode.NewStore()
	router := storage.NewRouter([]storage.Node{node})

	ca := NewCA(clientID, clock.NewSimulatedClock(time.Unix(0, 0)), testBlockSize, &inProcessMetaClient{catalog: catalog}, router, cacheBlocks)

	clientSide, serverSide := wire.NewPipe()
	go server.HandleStream(ctx, serverSide)
	ca.AttachStream(ctx, clientSide)

	// Register with the server before issuing any real request, mirroring
	// the handshake internal/metaserver expects on every new stream.
	_, err := ca.tokens.RequestToken(ctx, "__register__", wire.ModeRead, 0, 0)
	require.NoError(t, err)

	return ca
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRW)
	require.NoError(t, err)

	require.NoError(t, ca.Write(ctx, fd, 0, []byte("hello world")))

	_, _, err = ca.Fstat(fd)
	require.NoError(t, err)

	data, err := ca.Read(ctx, fd, 0, 11)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	require.NoError(t, ca.Close(ctx, fd))
}

func TestWriteUpdatesMetadataSizeImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRW)
	require.NoError(t, err)
	require.NoError(t, ca.Write(ctx, fd, 10, []byte("x")))

	size, _, err := ca.Fstat(fd)
	require.NoError(t, err)
	require.Equal(t, int64(11), size)
}

func TestDeleteRefusesWhileOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRW)
	require.NoError(t, err)

	err = ca.Delete("f")
	require.Error(t, err)

	require.NoError(t, ca.Close(ctx, fd))
}

func TestCrossClientWriteWriteRevokesAndCarves(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)

	owner := newTestCA(t, ctx, "owner", server, catalog)
	require.NoError(t, owner.Create("f", 1))
	ownerFd, err := owner.Open("f", OpenModeRW)
	require.NoError(t, err)
	require.NoError(t, owner.Write(ctx, ownerFd, 0, []byte("aaaaaaaaaaaa")))

	requester := newTestCA(t, ctx, "requester", server, catalog)
	requesterFd, err := requester.Open("f", OpenModeRW)
	require.NoError(t, err)

	require.NoError(t, requester.Write(ctx, requesterFd, 4, []byte("bbbb")))

	_, _, err = owner.Fstat(ownerFd)
	require.NoError(t, err)

	data, err := owner.Read(ctx, ownerFd, 0, 12)
	require.NoError(t, err)
	require.Equal(t, "aaaa", string(data[0:4]))

	require.NoError(t, owner.Close(ctx, ownerFd))
	require.NoError(t, requester.Close(ctx, requesterFd))
}

func TestWriteOnReadOnlyFdIsPermissionDenied(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRead)
	require.NoError(t, err)

	err = ca.Write(ctx, fd, 0, []byte("nope"))
	require.Error(t, err)
	require.True(t, pfserrors.IsPermissionDenied(err))

	require.NoError(t, ca.Close(ctx, fd))
}

func TestReadClampsToKnownSize(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRW)
	require.NoError(t, err)
	require.NoError(t, ca.Write(ctx, fd, 0, []byte("hello")))

	_, _, err = ca.Fstat(fd)
	require.NoError(t, err)

	// A read straddling EOF is truncated to what's available.
	data, err := ca.Read(ctx, fd, 2, 100)
	require.NoError(t, err)
	require.Equal(t, "llo", string(data))

	// A read starting at or past EOF returns zero bytes, not an error.
	data, err = ca.Read(ctx, fd, 5, 10)
	require.NoError(t, err)
	require.Empty(t, data)

	data, err = ca.Read(ctx, fd, 50, 10)
	require.NoError(t, err)
	require.Empty(t, data)

	// A zero-byte request returns 0 regardless of offset.
	data, err = ca.Read(ctx, fd, 0, 0)
	require.NoError(t, err)
	require.Empty(t, data)

	require.NoError(t, ca.Close(ctx, fd))
}

func TestWriteHitOnlyCountsAlreadyCachedBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCA(t, ctx, "client-a", server, catalog)

	require.NoError(t, ca.Create("f", 1))
	fd, err := ca.Open("f", OpenModeRW)
	require.NoError(t, err)

	// First touch of block 0 is a fresh admission, not a hit.
	require.NoError(t, ca.Write(ctx, fd, 0, []byte("a")))
	require.Equal(t, int64(0), ca.Execstat().WriteHits)

	// Second write to the same already-cached block is a hit.
	require.NoError(t, ca.Write(ctx, fd, 1, []byte("b")))
	require.Equal(t, int64(1), ca.Execstat().WriteHits)

	require.NoError(t, ca.Close(ctx, fd))
}

func TestFullBlockWriteCountsEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := metadata.NewCatalog(clock.NewSimulatedClock(time.Unix(0, 0)), 1)
	server := metaserver.NewServer(catalog)
	ca := newTestCAWithCache(t, ctx, "client-a", server, catalog, 1)

	require.NoError(t, ca.Create("a", 1))
	require.NoError(t, ca.Create("b", 1))
	fdA, err := ca.Open("a", OpenModeRW)
	require.NoError(t, err)
	fdB, err := ca.Open("b", OpenModeRW)
	require.NoError(t, err)

	// A full, block-aligned write that admits straight into a cache at
	// capacity must still count the eviction it forces.
	require.NoError(t, ca.Write(ctx, fdA, 0, []byte("aaaa")))
	require.Equal(t, int64(0), ca.Execstat().Evictions)

	require.NoError(t, ca.Write(ctx, fdB, 0, []byte("bbbb")))
	require.Equal(t, int64(1), ca.Execstat().Evictions)

	require.NoError(t, ca.Close(ctx, fdA))
	require.NoError(t, ca.Close(ctx, fdB))
}
