package main

import (
	"fmt"

	"github.com/Kylemclean11/Xline/pkg/client"
	"github.com/Kylemclean11/Xline/pkg/command/kvcommand"
	"github.com/Kylemclean11/Xline/pkg/pipeline"
	"github.com/spf13/cobra"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose a get or put command against a running node",
	Long: `Propose connects to one node and submits a single kvcommand
(get or put), printing its fast-path execution result. A NotLeader
response prints the current leader's node id so the caller can retry
there.`,
	RunE: runPropose,
}

func init() {
	proposeCmd.Flags().String("addr", "127.0.0.1:7000", "node address to connect to")
	proposeCmd.Flags().String("op", "get", "operation: get or put")
	proposeCmd.Flags().String("key", "", "key to operate on (required)")
	proposeCmd.Flags().BytesBase64("value", nil, "base64-encoded value for put")
	_ = proposeCmd.MarkFlagRequired("key")
}

func runPropose(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	op, _ := cmd.Flags().GetString("op")
	key, _ := cmd.Flags().GetString("key")
	value, _ := cmd.Flags().GetBytesBase64("value")

	c, err := client.New(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()

	var cc *kvcommand.Command
	switch op {
	case "get":
		cc = kvcommand.NewGet(key)
	case "put":
		cc = kvcommand.NewPut(key, value)
	default:
		return fmt.Errorf("unknown --op %q, want get or put", op)
	}

	raw, err := cc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	result, leader, err := c.Propose(raw)
	if err != nil {
		if err == pipeline.ErrNotLeader {
			if leader.Known {
				return fmt.Errorf("not the leader; current leader is %q (term %d)", leader.LeaderID, leader.Term)
			}
			return fmt.Errorf("not the leader; no leader known yet")
		}
		return err
	}

	fmt.Printf("%s\n", string(result))
	return nil
}
