package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gossipdb/internal/app"
)

var (
	flagAddr      string
	flagPort      int
	flagDC        string
	flagRack      string
	flagClusterID string
	flagSeeds     []string
	flagRF        []string
)

var rootCmd = &cobra.Command{
	Use:   "gossipdb",
	Short: "Gossip-based cluster membership and replica placement core",
	Long: `A distributed cluster-membership core: anti-entropy gossip, phi-accrual
failure detection, topology-aware snitching and replica placement.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagAddr, "address", "a", "127.0.0.1", "Address to bind the gossip transport to")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 7000, "Port to bind the gossip transport to")
	rootCmd.PersistentFlags().StringVar(&flagDC, "dc", "datacenter1", "This node's datacenter")
	rootCmd.PersistentFlags().StringVar(&flagRack, "rack", "rack1", "This node's rack")
	rootCmd.PersistentFlags().StringVar(&flagClusterID, "cluster-id", "gossipdb", "Cluster id; SYNs from a different cluster id are rejected")
	rootCmd.PersistentFlags().StringSliceVar(&flagSeeds, "seeds", nil, "Comma-separated seed addresses (addr:port)")
	rootCmd.PersistentFlags().StringSliceVar(&flagRF, "replication", nil, "Comma-separated dc=rf pairs for a network-topology replication strategy (e.g. datacenter1=3)")
}

// buildOptions turns the persistent flags into app.Options.
func buildOptions() (app.Options, error) {
	rf, err := parseReplicationFactors(flagRF)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Addr:               flagAddr,
		Port:               flagPort,
		Datacenter:         flagDC,
		Rack:               flagRack,
		ClusterID:          flagClusterID,
		Seeds:              flagSeeds,
		ReplicationOptions: rf,
		LogToStdout:        true,
	}, nil
}

func parseReplicationFactors(pairs []string) (map[string]int, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		dc, rfStr, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("cmd: --replication entry %q must be dc=rf", pair)
		}
		rf, err := strconv.Atoi(rfStr)
		if err != nil {
			return nil, fmt.Errorf("cmd: --replication entry %q has a non-integer rf: %w", pair, err)
		}
		out[dc] = rf
	}
	return out, nil
}
