package storagenode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteBlockZeroFillsGap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WriteBlock(ctx, "f", 10, []byte("hi")))

	data, err := s.ReadBlock(ctx, "f", 0, 12)
	require.NoError(t, err)
	require.Equal(t, append(make([]byte, 10), []byte("hi")...), data)
}

func TestReadBlockTruncatesAtEOF(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.WriteBlock(ctx, "f", 0, []byte("hello")))

	data, err := s.ReadBlock(ctx, "f", 0, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.DeleteFile(ctx, "nonexistent"))

	require.NoError(t, s.WriteBlock(ctx, "f", 0, []byte("x")))
	require.NoError(t, s.DeleteFile(ctx, "f"))
	require.NoError(t, s.DeleteFile(ctx, "f"))

	data, err := s.ReadBlock(ctx, "f", 0, 10)
	require.NoError(t, err)
	require.Empty(t, data)
}
