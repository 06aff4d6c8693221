package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Long: `Delete an entry. If a task is currently running, the entry is
destroyed once that task finishes unless --kill is given, in which case the
running task is sent SIGTERM first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			kill, _ := cmd.Flags().GetBool("kill")
			if err := c.deleteEntry(args[0], kill); err != nil {
				return err
			}
			fmt.Printf("entry %s deleted\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("kill", false, "SIGTERM the entry's active task before deleting")
	return cmd
}
