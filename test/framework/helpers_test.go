package framework

import (
	"context"
	"testing"
	"time"

	"github.com/Kylemclean11/Xline/pkg/command"
)

func testCtx() context.Context {
	ctx, _ := context.WithTimeout(context.Background(), time.Second)
	return ctx
}

func mustMarshal(t *testing.T, cmd command.Command) []byte {
	t.Helper()
	raw, err := cmd.Marshal()
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	return raw
}
