package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoad(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	r := &Run{ID: "r1", Requested: 3, StartedAt: time.Now()}
	require.NoError(t, s.Save(ctx, r))

	// saving again overwrites
	r.Accepted = 3
	require.NoError(t, s.Save(ctx, r))
	got, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 3, got.Accepted)

	// callers cannot mutate the stored copy
	got.Accepted = 99
	again, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, 3, again.Accepted)
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, &Run{ID: id}))
	}
	_, err := s.Load(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Load(ctx, "c")
	require.NoError(t, err)
}
