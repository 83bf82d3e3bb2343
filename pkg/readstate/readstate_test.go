package readstate

import (
	"testing"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/replog"
	"github.com/Kylemclean11/Xline/pkg/specpool"
	"github.com/stretchr/testify/require"
)

func TestFetchReadStateReturnsCommitIndexWhenNoConflict(t *testing.T) {
	l := replog.New()
	l.Append(1, kvcommand.NewPut("other", []byte("v")))
	l.AdvanceCommit(1)
	p := specpool.New()
	tr := New(l, p)

	resp := tr.FetchReadState(kvcommand.NewGet("k1"))
	require.Equal(t, KindCommitIndex, resp.Kind)
	require.Equal(t, uint64(1), resp.Index)
}

func TestFetchReadStateReturnsIDsOnConflict(t *testing.T) {
	l := replog.New()
	p := specpool.New()
	pending := kvcommand.NewPut("k1", []byte("v"))
	p.TryInsert(pending, 1)
	tr := New(l, p)

	resp := tr.FetchReadState(kvcommand.NewGet("k1"))
	require.Equal(t, KindIDs, resp.Kind)
	require.Equal(t, []command.ID{pending.ID()}, resp.IDs)
}
