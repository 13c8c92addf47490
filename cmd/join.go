package cmd

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gossipdb/internal/app"
	"gossipdb/internal/membership"
)

var errJoinNeedsSeeds = errors.New("cmd: join requires at least one --seeds entry")

var joinTimeout time.Duration

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start a node and wait until a seed has acknowledged it",
	Long: `Start a node requiring at least one --seeds entry, wait until this node's
view of cluster membership includes at least one peer learned through
gossip, then continue running like "start".

Examples:
  gossipdb join --address=127.0.0.1 --port=7001 --seeds=127.0.0.1:7000`,
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().DurationVar(&joinTimeout, "timeout", 30*time.Second, "How long to wait for a seed to respond before giving up")
}

func runJoin(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	if len(opts.Seeds) == 0 {
		return errJoinNeedsSeeds
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

	deadline := time.Now().Add(joinTimeout)
	for len(n.Accessors().AllEndpointStates()) == 0 {
		if time.Now().After(deadline) {
			n.Stop()
			return errors.New("cmd: join: no seed acknowledged this node before the timeout")
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Printf("joined cluster %q via %d seed(s)", opts.ClusterID, len(opts.Seeds))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Logger().Info("shutting down")
	n.Stop()
	return nil
}
