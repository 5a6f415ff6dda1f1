// File: wsconfig/config_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wsconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr || cfg.FragmentThreshold != def.FragmentThreshold {
		t.Fatalf("Load on missing file = %+v, want default %+v", cfg, def)
	}
}

func TestLoad_EmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg != *Default() {
		t.Fatalf("Load(\"\") = %+v, want default", cfg)
	}
}

func TestLoad_OverlaysFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wscore.ini")
	contents := "" +
		"[server]\n" +
		"listen_addr = :9999\n" +
		"\n" +
		"[policy]\n" +
		"max_message_size = 1048576\n" +
		"idle_timeout_seconds = 45\n" +
		"\n" +
		"[executor]\n" +
		"num_workers = 8\n" +
		"numa_node = 1\n" +
		"\n" +
		"[metrics]\n" +
		"enabled = false\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write ini: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", cfg.ListenAddr)
	}
	if cfg.MaxMessageSize != 1048576 {
		t.Errorf("MaxMessageSize = %d, want 1048576", cfg.MaxMessageSize)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Errorf("IdleTimeout = %v, want 45s", cfg.IdleTimeout)
	}
	if cfg.NumWorkers != 8 {
		t.Errorf("NumWorkers = %d, want 8", cfg.NumWorkers)
	}
	if cfg.NumaNode != 1 {
		t.Errorf("NumaNode = %d, want 1", cfg.NumaNode)
	}
	if cfg.MetricsEnabled {
		t.Errorf("MetricsEnabled = true, want false")
	}
	// Untouched sections/keys keep their defaults.
	if cfg.CloseTimeout != Default().CloseTimeout {
		t.Errorf("CloseTimeout = %v, want default %v", cfg.CloseTimeout, Default().CloseTimeout)
	}
}

func TestPolicyFields(t *testing.T) {
	cfg := Default()
	pf := cfg.PolicyFields()
	if pf.MaxMessageSize != cfg.MaxMessageSize || pf.NumaNode != cfg.NumaNode {
		t.Fatalf("PolicyFields() = %+v, mismatched against Config %+v", pf, cfg)
	}
}
