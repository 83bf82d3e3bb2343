package kvcommand

import (
	"testing"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/stretchr/testify/require"
)

func TestPutThenAfterSyncPersists(t *testing.T) {
	reg := NewRegister()
	put := NewPut("k1", []byte("v1"))

	er, err := put.Execute(reg)
	require.NoError(t, err)
	require.Equal(t, command.ExecResult("v1"), er)
	require.Nil(t, reg.get("k1"), "Execute must not mutate visible state")

	asr, err := put.AfterSync(reg, 1)
	require.NoError(t, err)
	require.Equal(t, command.AfterSyncResult("v1"), asr)
	require.Equal(t, []byte("v1"), reg.get("k1"))
}

func TestMarshalDecodeRoundTrip(t *testing.T) {
	put := NewPut("k1", []byte("v1"))
	data, err := put.Marshal()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, put.ID(), decoded.ID())
	require.Equal(t, put.Keys(), decoded.Keys())
}

func TestGetKeysSingleton(t *testing.T) {
	g := NewGet("k1")
	require.Len(t, g.Keys(), 1)
	require.Equal(t, command.Key("k1"), g.Keys()[0])
}
