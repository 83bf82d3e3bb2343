package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCmd struct {
	id   ID
	keys []Key
}

func (f fakeCmd) ID() ID                                            { return f.id }
func (f fakeCmd) Keys() []Key                                       { return f.keys }
func (f fakeCmd) Execute(State) (ExecResult, error)                 { return nil, nil }
func (f fakeCmd) AfterSync(State, uint64) (AfterSyncResult, error)  { return nil, nil }
func (f fakeCmd) Marshal() ([]byte, error)                          { return nil, nil }

func TestConflictsDetectsSharedKey(t *testing.T) {
	a := fakeCmd{id: ID{1}, keys: []Key{[]byte("k1")}}
	b := fakeCmd{id: ID{2}, keys: []Key{[]byte("k1"), []byte("k2")}}
	assert.True(t, Conflicts(a, b))
	assert.True(t, Conflicts(b, a))
}

func TestConflictsDisjointKeys(t *testing.T) {
	a := fakeCmd{id: ID{1}, keys: []Key{[]byte("k1")}}
	b := fakeCmd{id: ID{2}, keys: []Key{[]byte("k2")}}
	assert.False(t, Conflicts(a, b))
}

func TestConflictsSameIDNeverConflicts(t *testing.T) {
	a := fakeCmd{id: ID{9}, keys: []Key{[]byte("k1")}}
	assert.False(t, Conflicts(a, a))
}

func TestIDStringRoundTrips(t *testing.T) {
	id := ID{0xde, 0xad, 0xbe, 0xef}
	assert.Equal(t, "deadbeef000000000000000000000000", id.String())
	assert.False(t, id.IsZero())
	assert.True(t, ID{}.IsZero())
}
