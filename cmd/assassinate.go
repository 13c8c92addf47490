package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gossipdb/internal/app"
	"gossipdb/internal/membership"
)

var assassinateTimeout time.Duration

var assassinateCmd = &cobra.Command{
	Use:   "assassinate <addr:port>",
	Short: "Force an endpoint out of the cluster",
	Long: `Join the cluster via --seeds, wait until the target endpoint is known
through gossip, then assassinate it (§7 class 6 eviction): force its status
to LEFT, wait out the ring delay, and evict it unless it restarted
concurrently.

Examples:
  gossipdb assassinate 127.0.0.1:7002 --seeds=127.0.0.1:7000`,
	Args: cobra.ExactArgs(1),
	RunE: runAssassinate,
}

func init() {
	rootCmd.AddCommand(assassinateCmd)
	assassinateCmd.Flags().DurationVar(&assassinateTimeout, "timeout", 30*time.Second, "How long to wait for the target to be learned through gossip")
}

func runAssassinate(cmd *cobra.Command, args []string) error {
	target, err := parseEndpointArg(args[0])
	if err != nil {
		return err
	}

	opts, err := buildOptions()
	if err != nil {
		return err
	}
	n, err := app.New(opts)
	if err != nil {
		return err
	}
	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	deadline := time.Now().Add(assassinateTimeout)
	for {
		if _, ok := n.Accessors().CurrentGeneration(target); ok {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("cmd: assassinate: %s was never learned through gossip", target)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := n.Accessors().AssassinateEndpoint(target); err != nil {
		return fmt.Errorf("cmd: assassinate: %w", err)
	}
	fmt.Printf("assassinated %s\n", target)
	return nil
}

func parseEndpointArg(s string) (membership.Endpoint, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return membership.Endpoint{}, fmt.Errorf("cmd: %q must be addr:port", s)
	}
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return membership.Endpoint{}, fmt.Errorf("cmd: %q has a non-integer port: %w", s, err)
	}
	return membership.Endpoint{Addr: s[:idx], Port: port}, nil
}
