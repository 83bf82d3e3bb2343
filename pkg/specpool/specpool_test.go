package specpool

import (
	"testing"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryInsertAcceptsDisjointKeys(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	b := kvcommand.NewPut("k2", nil)

	out, _ := p.TryInsert(a, 1)
	assert.Equal(t, Accepted, out)

	out, _ = p.TryInsert(b, 1)
	assert.Equal(t, Accepted, out)
	assert.Equal(t, 2, p.Len())
}

func TestTryInsertRejectsConflict(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	b := kvcommand.NewPut("k1", nil)

	out, _ := p.TryInsert(a, 1)
	require.Equal(t, Accepted, out)

	out, ids := p.TryInsert(b, 1)
	assert.Equal(t, Conflict, out)
	require.Len(t, ids, 1)
	assert.Equal(t, a.ID(), ids[0])
}

func TestTryInsertSameIDIsIdempotent(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	out, _ := p.TryInsert(a, 1)
	require.Equal(t, Accepted, out)
	out, _ = p.TryInsert(a, 1)
	assert.Equal(t, Accepted, out)
	assert.Equal(t, 1, p.Len())
}

func TestRemoveDeletesEntry(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	p.TryInsert(a, 1)
	p.Remove(a.ID())
	assert.Equal(t, 0, p.Len())
}

func TestConflictingMatchesReadKeys(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	p.TryInsert(a, 1)

	ids := p.Conflicting([]command.Key{[]byte("k1")})
	require.Len(t, ids, 1)
	assert.Equal(t, a.ID(), ids[0])

	assert.Empty(t, p.Conflicting([]command.Key{[]byte("k2")}))
}

func TestReplaceFromMergesNonConflicting(t *testing.T) {
	p := New()
	a := kvcommand.NewPut("k1", nil)
	p.TryInsert(a, 1)

	other := New()
	b := kvcommand.NewPut("k2", nil)
	c := kvcommand.NewPut("k1", nil) // conflicts with a, already present
	other.TryInsert(b, 2)
	other.entries[c.ID()] = Entry{CmdID: c.ID(), Command: c, SpecTerm: 2}

	p.ReplaceFrom(other.Snapshot())

	ids := p.IDs()
	assert.Contains(t, ids, a.ID())
	assert.Contains(t, ids, b.ID())
	assert.NotContains(t, ids, c.ID())
}
