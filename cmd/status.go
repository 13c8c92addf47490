package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"gossipdb/internal/app"
)

var statusSettle time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot snapshot of cluster membership",
	Long: `Join the cluster via --seeds, wait --settle for gossip to exchange a few
rounds of state, then print every known endpoint's status, generation and
dynamic-snitch score.

Examples:
  gossipdb status --seeds=127.0.0.1:7000`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusSettle, "settle", 3*time.Second, "How long to gossip before printing a snapshot")
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	opts.LogToStdout = false

	n, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	time.Sleep(statusSettle)

	simple := n.Accessors().SimpleStates()
	scores := n.Accessors().Scores()

	hosts := make([]string, 0, len(simple))
	for host := range simple {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	fmt.Printf("%-22s %-6s %8s\n", "ENDPOINT", "STATUS", "SCORE")
	for _, host := range hosts {
		fmt.Printf("%-22s %-6s %8.3f\n", host, simple[host], scores[host])
	}
	return nil
}
