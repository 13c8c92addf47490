package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gossipdb/internal/app"
	"gossipdb/internal/membership"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a gossip node",
	Long: `Start a gossip protocol node and block until interrupted.

Examples:
  # Start a seed node
  gossipdb start --address=127.0.0.1 --port=7000

  # Start a node that gossips with an existing seed
  gossipdb start --address=127.0.0.1 --port=7001 --seeds=127.0.0.1:7000`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}

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
	log.Printf("gossipdb node %s listening, cluster %q", n.Local().String(), opts.ClusterID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Logger().Info("shutting down")
	n.Stop()
	return nil
}
