package state

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
	"github.com/chriscoveyduck/octopus2adls/pkg/lake/memory"
)

func newTestStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	mem := memory.New()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return New(mem, log), mem
}

func TestStore_GetAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "1234:A1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_CommitThenGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	end := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Commit(ctx, "1234:A1", end))

	got, ok, err := s.Get(ctx, "1234:A1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(end))
}

func TestStore_CommitMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	later := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, s.Commit(ctx, "1234:A1", later))
	require.NoError(t, s.Commit(ctx, "1234:A1", earlier))

	got, ok, err := s.Get(ctx, "1234:A1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(later), "earlier commit must not move the bookmark back")
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	e1 := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	e2 := e1.Add(2 * time.Hour)

	require.NoError(t, s.Commit(ctx, "1234:A1", e1))
	require.NoError(t, s.Commit(ctx, "5678:B2", e2))

	got, ok, err := s.Get(ctx, "1234:A1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(e1))
}

func TestStore_CorruptFileReadsAsBootstrap(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, lake.StatePath, []byte("{not json")))

	_, ok, err := s.Get(ctx, "1234:A1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_CommitOverCorruptFileRewrites(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, mem.Put(ctx, lake.StatePath, []byte(`{"1234:A1": "yesterday"}`)))

	end := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Commit(ctx, "1234:A1", end))

	got, ok, err := s.Get(ctx, "1234:A1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(end))
}
