package cmd

import (
	"github.com/spf13/cobra"

	"gossipdb/internal/app"
	"gossipdb/internal/membership"
	"gossipdb/internal/tui"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start a gossip node with a live terminal view of cluster membership",
	Long: `Start a gossip node the same way "start" does, but attach a terminal UI
showing every known peer's status, generation, dynamic-snitch score and
downtime, refreshed on a timer.

Keyboard shortcuts:
  Q - Quit and shut the node down

Examples:
  gossipdb interactive --address=127.0.0.1 --port=7000`,
	RunE: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	opts.LogToStdout = false // stdout is the TUI's; logs go to the ring buffer only

	n, err := app.New(opts)
	if err != nil {
		return err
	}
	n.ApplyLocalState(membership.StatusKey, "NORMAL")
	n.ApplyLocalState(membership.DCKey, opts.Datacenter)
	n.ApplyLocalState(membership.RackKey, opts.Rack)

	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	return tui.Run(n.Local(), n.Accessors(), n.Logs())
}
