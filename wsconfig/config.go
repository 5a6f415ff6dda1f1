// File: wsconfig/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Config is the immutable, file-loaded run configuration, grounded on the
// teacher's facade.Config/DefaultConfig pattern (one flat struct with sane
// defaults, loaded once at startup). Unlike facade.Config it is sourced
// from an INI file via github.com/Unknwon/goconfig rather than constructed
// in code — that dependency sits in the teacher's go.mod already but,
// like github.com/eapache/queue, is never actually read by any teacher
// file; no other repo in the pack demonstrates goconfig usage either, so
// this file's section/key layout is new, shaped the way facade.Config's
// fields are grouped (listener, policy, workers, NUMA, metrics).

package wsconfig

import (
	"os"
	"strings"
	"time"

	"github.com/Unknwon/goconfig"

	"github.com/momentics/wscore/wsframe"
)

// Config is the top-level run configuration for a wscore server process.
type Config struct {
	ListenAddr string // [server] listen_addr

	MaxMessageSize        uint64        // [policy] max_message_size
	MaxFramePayloadSize    uint64        // [policy] max_frame_payload_size
	IdleTimeout            time.Duration // [policy] idle_timeout_seconds
	CloseTimeout           time.Duration // [policy] close_timeout_seconds
	MaxOutboundQueueBytes  uint64        // [policy] max_outbound_queue_bytes
	FragmentThreshold      uint64        // [policy] fragment_threshold

	NumWorkers int // [executor] num_workers
	NumaNode   int // [executor] numa_node

	MetricsNamespace string // [metrics] namespace
	MetricsEnabled   bool   // [metrics] enabled

	TracingEnabled     bool   // [tracing] enabled
	TracingServiceName string // [tracing] service_name
}

// Default returns sane defaults matching wsconn.DefaultPolicy, used when no
// config file is supplied or a section/key is absent from it.
func Default() *Config {
	return &Config{
		ListenAddr:            ":8080",
		MaxMessageSize:        0,
		MaxFramePayloadSize:   0,
		IdleTimeout:           30 * time.Second,
		CloseTimeout:          5 * time.Second,
		MaxOutboundQueueBytes: 0,
		FragmentThreshold:     16 * 1024,
		NumWorkers:            0, // 0 = runtime.NumCPU(), see wsexec.New
		NumaNode:              -1,
		MetricsNamespace:      "wscore",
		MetricsEnabled:        true,
		TracingEnabled:        false,
		TracingServiceName:    "wscore",
	}
}

// Load reads path as an INI file and overlays its values onto Default(),
// leaving any section or key the file omits at its default. A missing file
// is not an error: it simply yields Default() unchanged, matching
// facade.DefaultConfig's "config is optional" stance.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	cf, err := goconfig.LoadConfigFile(path)
	if err != nil {
		if isNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	cfg.ListenAddr = cf.MustValue("server", "listen_addr", cfg.ListenAddr)

	cfg.MaxMessageSize = uint64(cf.MustInt64("policy", "max_message_size", int64(cfg.MaxMessageSize)))
	cfg.MaxFramePayloadSize = uint64(cf.MustInt64("policy", "max_frame_payload_size", int64(cfg.MaxFramePayloadSize)))
	cfg.IdleTimeout = time.Duration(cf.MustInt64("policy", "idle_timeout_seconds", int64(cfg.IdleTimeout/time.Second))) * time.Second
	cfg.CloseTimeout = time.Duration(cf.MustInt64("policy", "close_timeout_seconds", int64(cfg.CloseTimeout/time.Second))) * time.Second
	cfg.MaxOutboundQueueBytes = uint64(cf.MustInt64("policy", "max_outbound_queue_bytes", int64(cfg.MaxOutboundQueueBytes)))
	cfg.FragmentThreshold = uint64(cf.MustInt64("policy", "fragment_threshold", int64(cfg.FragmentThreshold)))

	cfg.NumWorkers = cf.MustInt("executor", "num_workers", cfg.NumWorkers)
	cfg.NumaNode = cf.MustInt("executor", "numa_node", cfg.NumaNode)

	cfg.MetricsNamespace = cf.MustValue("metrics", "namespace", cfg.MetricsNamespace)
	cfg.MetricsEnabled = cf.MustBool("metrics", "enabled", cfg.MetricsEnabled)

	cfg.TracingEnabled = cf.MustBool("tracing", "enabled", cfg.TracingEnabled)
	cfg.TracingServiceName = cf.MustValue("tracing", "service_name", cfg.TracingServiceName)

	return cfg, nil
}

func isNotExist(err error) bool {
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "no such file")
}

// PolicyFields is the subset of Config that maps onto wsconn.Policy (it
// carries no role); kept here rather than importing wsconn directly so
// wsconfig stays a leaf dependency in the module graph (wsconn does not
// need to know how its Policy was populated). Callers assign the returned
// fields onto a wsconn.Policy themselves:
//
//	p := wsconn.DefaultPolicy(wsframe.RoleServer)
//	pc := cfg.PolicyFields()
//	p.MaxMessageSize, p.MaxFramePayloadSize = pc.MaxMessageSize, pc.MaxFramePayloadSize
//	...
type PolicyFields struct {
	MaxMessageSize        uint64
	MaxFramePayloadSize   uint64
	IdleTimeout           time.Duration
	CloseTimeout          time.Duration
	MaxOutboundQueueBytes uint64
	NumaNode              int
	MetricsNamespace      string
}

// PolicyFields extracts the subset of Config that maps onto wsconn.Policy.
func (c *Config) PolicyFields() PolicyFields {
	return PolicyFields{
		MaxMessageSize:        c.MaxMessageSize,
		MaxFramePayloadSize:   c.MaxFramePayloadSize,
		IdleTimeout:           c.IdleTimeout,
		CloseTimeout:          c.CloseTimeout,
		MaxOutboundQueueBytes: c.MaxOutboundQueueBytes,
		NumaNode:              c.NumaNode,
		MetricsNamespace:      c.MetricsNamespace,
	}
}

// Role is re-exported so callers need not import wsframe solely to name a
// role when building a Policy from PolicyFields.
type Role = wsframe.Role
