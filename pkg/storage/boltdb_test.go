package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStableStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	empty, err := store.LoadStableState()
	require.NoError(t, err)
	require.Equal(t, StableState{}, empty)

	want := StableState{CurrentTerm: 7, VotedFor: "peer-b", VotedForSet: true}
	require.NoError(t, store.SaveStableState(want))

	got, err := store.LoadStableState()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSnapshotRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.False(t, ok)

	want := SnapshotRecord{LastIncludedIndex: 42, LastIncludedTerm: 3, Data: []byte("payload")}
	require.NoError(t, store.SaveSnapshot(want))

	got, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveSnapshot(SnapshotRecord{LastIncludedIndex: 1, LastIncludedTerm: 1, Data: []byte("old")}))
	require.NoError(t, store.SaveSnapshot(SnapshotRecord{LastIncludedIndex: 2, LastIncludedTerm: 1, Data: []byte("new")}))

	got, ok, err := store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), got.LastIncludedIndex)
	require.Equal(t, []byte("new"), got.Data)
}
