package replog

import (
	"testing"

	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendIsContiguous(t *testing.T) {
	l := New()
	last := l.Append(1, kvcommand.NewPut("k1", []byte("v1")), kvcommand.NewPut("k2", []byte("v2")))
	assert.Equal(t, uint64(2), last)

	e, ok := l.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), e.Index)
	assert.Equal(t, uint64(1), e.Term)
}

func TestAdvanceCommitIsMonotonicAndClamped(t *testing.T) {
	l := New()
	l.Append(1, kvcommand.NewPut("k1", nil))

	assert.Equal(t, uint64(1), l.AdvanceCommit(5)) // clamped to last index
	assert.Equal(t, uint64(1), l.AdvanceCommit(0)) // never regresses
}

func TestTruncateSuffixRefusesCommitted(t *testing.T) {
	l := New()
	l.Append(1, kvcommand.NewPut("k1", nil), kvcommand.NewPut("k2", nil))
	l.AdvanceCommit(1)

	err := l.TruncateSuffix(1)
	assert.Error(t, err)

	require.NoError(t, l.TruncateSuffix(2))
	assert.Equal(t, uint64(1), l.LastIndex())
}

func TestCompactRaisesBase(t *testing.T) {
	l := New()
	l.Append(1, kvcommand.NewPut("k1", nil), kvcommand.NewPut("k2", nil), kvcommand.NewPut("k3", nil))
	l.AdvanceCommit(3)

	l.Compact(2, 1)
	base, term := l.Base()
	assert.Equal(t, uint64(2), base)
	assert.Equal(t, uint64(1), term)

	_, ok := l.Get(1)
	assert.False(t, ok, "compacted entry must be gone")
	e, ok := l.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint64(3), e.Index)
}

func TestSetLastAppliedEnforcesInvariants(t *testing.T) {
	l := New()
	l.Append(1, kvcommand.NewPut("k1", nil))
	l.AdvanceCommit(1)

	require.NoError(t, l.SetLastApplied(1))
	assert.Error(t, l.SetLastApplied(0), "must not regress")

	l2 := New()
	l2.Append(1, kvcommand.NewPut("k1", nil))
	assert.Error(t, l2.SetLastApplied(1), "must not exceed commit_index")
}

func TestEntriesInClampsRange(t *testing.T) {
	l := New()
	l.Append(1, kvcommand.NewPut("k1", nil), kvcommand.NewPut("k2", nil), kvcommand.NewPut("k3", nil))

	entries := l.EntriesIn(2, 100)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Index)
	assert.Equal(t, uint64(3), entries[1].Index)
}
