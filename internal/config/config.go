// Package config builds the in-process Config struct used to wire every
// other package. Per spec's Non-goals, this package never parses a
// configuration file — values come from cobra flag defaults (see cmd/),
// matching the teacher's node/config.go.
package config

import (
	"errors"
	"time"
)

// Defaults taken verbatim from spec §6's "Gossip-tick integer magic
// numbers" and §5's timeouts — these must stay fixed across versions.
const (
	GossipPeriod = 1 * time.Second

	DefaultRingDelay       = 30 * time.Second
	DefaultConvictThreshold = 8.0

	// SampleSize bounds the failure detector's arrival window (§3).
	SampleSize = 1000

	// DynamicSnitchAlpha/Window parameterize the exponentially decaying
	// latency sample (§4.5).
	DynamicSnitchAlpha  = 0.75
	DynamicSnitchWindow = 100

	DefaultDynamicUpdateInterval = 100 * time.Millisecond
	DefaultDynamicResetInterval  = 10 * time.Minute
	DefaultBadnessThreshold      = 0.0

	// VeryLongTime is the default expire-time horizon for LEFT endpoints
	// (§5).
	VeryLongTime = 3 * 24 * time.Hour

	// MaxGenerationDifference is the "about one year" corruption-detection
	// window from §3.
	MaxGenerationDifference = int64(365 * 24 * 60 * 60)
)

// Config collects every tunable named in spec §6.
type Config struct {
	// Local identity.
	Addr   string
	Port   int
	HostID string

	// Topology (subscriber-populated at startup via ApplyLocalState, but
	// defaults live here for convenience/testing).
	Datacenter string
	Rack       string

	// Seeds are the small static rendezvous set (§4.3.5).
	Seeds []string

	GossipPeriod time.Duration
	RingDelay    time.Duration

	// Failure detector.
	PhiConvictThreshold float64
	FDInitialInterval    time.Duration
	FDMaxInterval        time.Duration

	// Dynamic snitch.
	DynamicUpdateInterval time.Duration
	DynamicResetInterval  time.Duration
	DynamicBadnessThreshold float64

	// Replication strategy options: {dc_name: rf} for network-topology,
	// empty for local. Validated at startup (§7 class 3).
	ReplicationOptions map[string]int
}

// Default returns a Config with every spec-mandated default applied.
func Default() *Config {
	return &Config{
		Addr:                "127.0.0.1",
		Port:                7000,
		GossipPeriod:        GossipPeriod,
		RingDelay:           DefaultRingDelay,
		PhiConvictThreshold: DefaultConvictThreshold,
		FDInitialInterval:   2 * GossipPeriod,
		FDMaxInterval:       2 * GossipPeriod,
		DynamicUpdateInterval:   DefaultDynamicUpdateInterval,
		DynamicResetInterval:    DefaultDynamicResetInterval,
		DynamicBadnessThreshold: DefaultBadnessThreshold,
		ReplicationOptions:      map[string]int{},
	}
}

// QuarantineDelay is 2x ring delay (§5).
func (c *Config) QuarantineDelay() time.Duration { return 2 * c.RingDelay }

// FatClientTimeout is half the quarantine delay (§4.3.4).
func (c *Config) FatClientTimeout() time.Duration { return c.QuarantineDelay() / 2 }

var (
	ErrAddrRequired            = errors.New("config: address is required")
	ErrPortRequired            = errors.New("config: port must be positive")
	ErrDuplicateDatacenter     = errors.New("config: duplicate datacenter in replication options")
	ErrReplicationFactorOption = errors.New("config: \"replication_factor\" is not a valid network-topology option key")
)

// Validate fails fast on the §7 class-3 configuration errors this layer
// owns. Replication-option specific validation (duplicate DC names,
// rejected "replication_factor" key) lives with the caller building the
// options map, since Config.ReplicationOptions is already a de-duplicated
// Go map by the time it reaches here — see replication.NewNetworkTopologyStrategy.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrAddrRequired
	}
	if c.Port <= 0 {
		return ErrPortRequired
	}
	if _, reserved := c.ReplicationOptions["replication_factor"]; reserved {
		return ErrReplicationFactorOption
	}
	return nil
}
