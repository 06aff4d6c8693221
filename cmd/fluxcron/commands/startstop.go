package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Arm an entry's trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := c.startEntry(args[0]); err != nil {
				return err
			}
			fmt.Printf("entry %s started\n", args[0])
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Disarm an entry's trigger without destroying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := c.stopEntry(args[0]); err != nil {
				return err
			}
			fmt.Printf("entry %s stopped\n", args[0])
			return nil
		},
	}
}
