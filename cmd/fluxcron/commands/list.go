package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all cron entries",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, _ []string) error {
	c, err := newClientFromFlags(cmd)
	if err != nil {
		return err
	}
	entries, err := c.listEntries()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATE\tREPEAT")
	for _, e := range entries {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
			e["id"], e["name"], e["type"], stateOf(e), e["repeat"])
	}
	return w.Flush()
}

func stateOf(e map[string]any) string {
	if stopped, _ := e["stopped"].(bool); stopped {
		return "stopped"
	}
	return "running"
}
