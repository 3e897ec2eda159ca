package metadata

import (
	"testing"
	"time"

	"github.com/pfs-io/pfs/internal/clock"
	"github.com/pfs-io/pfs/internal/pfserrors"
	"github.com/stretchr/testify/require"
)

func newTestCatalog() *Catalog {
	return NewCatalog(clock.NewSimulatedClock(time.Unix(1000, 0)), 8)
}

func TestCreateFileAndFetch(t *testing.T) {
	c := newTestCatalog()

	fm, err := c.CreateFile("t", 3)
	require.NoError(t, err)
	require.Equal(t, int64(0), fm.Size)
	require.Equal(t, 3, fm.StripeWidth)

	got, err := c.Fetch("t")
	require.NoError(t, err)
	require.Equal(t, fm.Name, got.Name)
}

func TestCreateFileRejectsDuplicateAndBadStripeWidth(t *testing.T) {
	c := newTestCatalog()

	_, err := c.CreateFile("t", 3)
	require.NoError(t, err)

	_, err = c.CreateFile("t", 3)
	require.True(t, pfserrors.IsAlreadyExists(err))

	_, err = c.CreateFile("u", 0)
	require.True(t, pfserrors.IsInvalidArgument(err))

	_, err = c.CreateFile("v", 9)
	require.True(t, pfserrors.IsInvalidArgument(err))
}

func TestUpdateSizeOnlyGrows(t *testing.T) {
	c := newTestCatalog()
	_, err := c.CreateFile("t", 3)
	require.NoError(t, err)

	fm, err := c.Update("t", 100, time.Unix(2000, 0))
	require.NoError(t, err)
	require.Equal(t, int64(100), fm.Size)

	fm, err = c.Update("t", 50, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(100), fm.Size, "size must be monotonic")
	require.Equal(t, time.Unix(2000, 0), fm.Mtime, "zero mtime must not overwrite")
}

func TestDeleteBusyVsOk(t *testing.T) {
	c := newTestCatalog()
	_, err := c.CreateFile("t", 3)
	require.NoError(t, err)

	err = c.Delete("t", func(string) bool { return true })
	require.True(t, pfserrors.IsBusy(err))

	err = c.Delete("t", func(string) bool { return false })
	require.NoError(t, err)

	_, err = c.Fetch("t")
	require.True(t, pfserrors.IsNotFound(err))
}

func TestNodeForBlockStriping(t *testing.T) {
	fm := FileMetadata{StripeWidth: 3}
	require.Equal(t, 0, fm.NodeForBlock(0))
	require.Equal(t, 1, fm.NodeForBlock(1))
	require.Equal(t, 2, fm.NodeForBlock(2))
	require.Equal(t, 0, fm.NodeForBlock(3))
}
