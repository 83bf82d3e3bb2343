package snapshot

import (
	"testing"

	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/storage"
	"github.com/stretchr/testify/require"
)

func TestTakeThenInstallRestoresState(t *testing.T) {
	sourceLog := replog.New()
	sourceState := kvcommand.NewRegister()
	cmd := kvcommand.NewPut("k1", []byte("v1"))
	sourceLog.Append(1, cmd)
	sourceLog.AdvanceCommit(1)
	require.NoError(t, sourceLog.SetLastApplied(1))
	_, err := cmd.AfterSync(sourceState, 1)
	require.NoError(t, err)

	dir := t.TempDir()
	sourceStore, err := storage.NewBoltStore(dir)
	require.NoError(t, err)
	defer sourceStore.Close()

	taker := NewTaker(sourceLog, sourceState, sourceStore)
	require.NoError(t, taker.TakeAt(1))
	baseIndex, _ := sourceLog.Base()
	require.Equal(t, uint64(1), baseIndex)

	rec, ok, err := sourceStore.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, ok)

	destLog := replog.New()
	destState := kvcommand.NewRegister()
	destDir := t.TempDir()
	destStore, err := storage.NewBoltStore(destDir)
	require.NoError(t, err)
	defer destStore.Close()

	assembler := New(destLog, destState, destStore)
	chunks := Chunks(1, "leader", rec.LastIncludedIndex, rec.LastIncludedTerm, rec.Data, 4)
	require.True(t, len(chunks) > 1, "expected multiple chunks at chunkSize=4")

	for _, c := range chunks {
		require.NoError(t, assembler.Feed(c))
	}

	got, err := destState.Snapshot()
	require.NoError(t, err)
	want, err := sourceState.Snapshot()
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, rec.LastIncludedIndex, destLog.LastApplied())
}

func TestFeedRejectsOutOfOrderChunk(t *testing.T) {
	l := replog.New()
	state := kvcommand.NewRegister()
	a := New(l, state, nil)

	err := a.Feed(Chunk{Offset: 0, Data: []byte("ab"), Done: false})
	require.NoError(t, err)

	err = a.Feed(Chunk{Offset: 5, Data: []byte("cd"), Done: true})
	require.Error(t, err)
}

func TestTakeAtRefusesAheadOfLastApplied(t *testing.T) {
	l := replog.New()
	l.Append(1, kvcommand.NewPut("k", []byte("v")))
	state := kvcommand.NewRegister()
	taker := NewTaker(l, state, nil)

	err := taker.TakeAt(1)
	require.Error(t, err)
}
