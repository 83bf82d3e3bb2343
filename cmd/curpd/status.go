package main

import (
	"fmt"
	"time"

	"github.com/Kylemclean11/Xline/pkg/client"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a node's current leadership view",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("addr", "127.0.0.1:7000", "node address to connect to")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	c, err := client.New(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()

	st, err := c.FetchStatus()
	if err != nil {
		return err
	}

	fmt.Printf("term: %d\n", st.Term)
	if st.LeaderKnown {
		fmt.Printf("leader: %s\n", st.LeaderID)
	} else {
		fmt.Println("leader: unknown")
	}
	fmt.Printf("next election deadline: %s\n", st.ElectionDeadline.Format(time.RFC3339))
	return nil
}
