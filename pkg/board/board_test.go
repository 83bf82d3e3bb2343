package board

import (
	"context"
	"testing"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitERUnblocksOnSetER(t *testing.T) {
	b := New()
	id := command.ID{1}

	done := make(chan command.ExecResult, 1)
	go func() {
		er, err := b.WaitER(context.Background(), id)
		require.NoError(t, err)
		done <- er
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.SetER(id, command.ExecResult("v1")))

	select {
	case er := <-done:
		assert.Equal(t, command.ExecResult("v1"), er)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ER")
	}
}

func TestSetERIdempotentOnByteEqual(t *testing.T) {
	b := New()
	id := command.ID{2}
	require.NoError(t, b.SetER(id, command.ExecResult("v1")))
	require.NoError(t, b.SetER(id, command.ExecResult("v1")))
	assert.Error(t, b.SetER(id, command.ExecResult("v2")))
}

func TestWaitERRespectsContextDeadline(t *testing.T) {
	b := New()
	id := command.ID{3}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.WaitER(ctx, id)
	assert.Error(t, err)

	// The command is not cancelled: a late publish still succeeds.
	require.NoError(t, b.SetER(id, command.ExecResult("late")))
	er, ok := b.ER(id)
	require.True(t, ok)
	assert.Equal(t, command.ExecResult("late"), er)
}

func TestExistsAndReap(t *testing.T) {
	b := New()
	id := command.ID{4}
	assert.False(t, b.Exists(id))

	require.NoError(t, b.SetER(id, command.ExecResult("v")))
	assert.True(t, b.Exists(id))

	b.Reap(id)
	assert.False(t, b.Exists(id))
}

func TestASRIndependentOfER(t *testing.T) {
	b := New()
	id := command.ID{5}
	require.NoError(t, b.SetASR(id, command.AfterSyncResult("asr")))

	asr, err := b.WaitASR(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, command.AfterSyncResult("asr"), asr)

	_, ok := b.ER(id)
	assert.False(t, ok)
}
