package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreStoreAndFetch(t *testing.T) {
	store := NewMemoryStore()
	handle, err := store.StoreBlob(context.Background(), []byte("hello"))
	require.NoError(t, err)

	data, err := store.Fetch(context.Background(), handle)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestMemoryStoreIsContentAddressedIdempotent(t *testing.T) {
	store := NewMemoryStore()
	h1, err := store.StoreBlob(context.Background(), []byte("same"))
	require.NoError(t, err)
	h2, err := store.StoreBlob(context.Background(), []byte("same"))
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestMemoryStoreDistinctContentGetsDistinctHandles(t *testing.T) {
	store := NewMemoryStore()
	h1, _ := store.StoreBlob(context.Background(), []byte("a"))
	h2, _ := store.StoreBlob(context.Background(), []byte("b"))
	require.NotEqual(t, h1, h2)
}

func TestMemoryStoreFetchUnknownHandleIsErrNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Fetch(context.Background(), ParseHandle("deadbeef"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDoesNotAliasCallerSlice(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("mutate me")
	handle, err := store.StoreBlob(context.Background(), data)
	require.NoError(t, err)

	data[0] = 'X'

	stored, err := store.Fetch(context.Background(), handle)
	require.NoError(t, err)
	require.Equal(t, "mutate me", string(stored))
}

func TestHandleStringRoundTripsThroughParseHandle(t *testing.T) {
	store := NewMemoryStore()
	handle, _ := store.StoreBlob(context.Background(), []byte("x"))
	reparsed := ParseHandle(handle.String())
	require.Equal(t, handle, reparsed)
}
