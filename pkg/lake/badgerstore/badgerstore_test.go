package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chriscoveyduck/octopus2adls/pkg/lake"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := "consumption/kind=electricity/mpan_mprn=1234/serial=A1/date=2024-06-14/data.parquet"
	require.NoError(t, s.Put(ctx, path, []byte("payload")))

	got, err := s.Get(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "state/last_interval.json")
	require.ErrorIs(t, err, lake.ErrNotFound)
}

func TestStore_ListByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "rates/a", []byte("1")))
	require.NoError(t, s.Put(ctx, "rates/b", []byte("2")))
	require.NoError(t, s.Put(ctx, "consumption/a", []byte("3")))

	paths, err := s.List(ctx, "rates/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"rates/a", "rates/b"}, paths)
}

func TestStore_DeleteThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "state/lease.json", []byte("x")))
	require.NoError(t, s.Delete(ctx, "state/lease.json"))

	_, err := s.Get(ctx, "state/lease.json")
	require.ErrorIs(t, err, lake.ErrNotFound)
}
