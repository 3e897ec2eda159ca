package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsRecordedEvents(t *testing.T) {
	c := &MSCounters{}
	c.GrantIssued()
	c.GrantIssued()
	c.RevokeIssued()
	c.ConflictDetected()

	snap := c.Snapshot()
	require.Equal(t, int64(2), snap.Grants)
	require.Equal(t, int64(1), snap.Revokes)
	require.Equal(t, int64(1), snap.Conflicts)
}
