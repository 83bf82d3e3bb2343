package framework

import (
	"context"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
)

const opTimeout = time.Second

// Put proposes a put command against n and returns its execution
// result.
func (n *Node) Put(key string, value []byte) (command.ExecResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	raw, err := kvcommand.NewPut(key, value).Marshal()
	if err != nil {
		return nil, err
	}
	return n.Engine.Propose(ctx, raw)
}

// Get proposes a get command against n and returns its execution
// result.
func (n *Node) Get(key string) (command.ExecResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	raw, err := kvcommand.NewGet(key).Marshal()
	if err != nil {
		return nil, err
	}
	return n.Engine.Propose(ctx, raw)
}

// PutAndWaitSynced proposes a put and blocks for its after-sync result,
// guaranteeing the write is durably applied before returning — useful
// for scenarios that need a committed baseline before inducing a
// partition or crash.
func (n *Node) PutAndWaitSynced(key string, value []byte) (command.AfterSyncResult, error) {
	cmd := kvcommand.NewPut(key, value)
	raw, err := cmd.Marshal()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := n.Engine.Propose(ctx, raw); err != nil {
		return nil, err
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), opTimeout)
	defer cancel2()
	return n.Engine.WaitSynced(ctx2, cmd.ID())
}
