package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <topic>",
		Short: "Gate dispatch of newly scheduled tasks on an event bus topic",
		Long: `Enable sync gating: once a topic is set, a task that would otherwise
dispatch immediately instead queues until the next event on that topic,
unless it arrives within --epsilon of the previous sync event. Pass an
empty topic to disable gating and flush anything still queued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClientFromFlags(cmd)
			if err != nil {
				return err
			}
			epsilon, _ := cmd.Flags().GetFloat64("epsilon")
			topic := args[0]
			if topic == "-" {
				topic = ""
			}
			if err := c.sync(topic, epsilon); err != nil {
				return err
			}
			if topic == "" {
				fmt.Println("sync gating disabled")
			} else {
				fmt.Printf("sync gating enabled on topic %q\n", topic)
			}
			return nil
		},
	}
	cmd.Flags().Float64("epsilon", 0.015, "seconds within which a dispatch after a sync event runs immediately")
	return cmd
}
