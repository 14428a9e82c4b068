package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseServerFlagsDefaults(t *testing.T) {
	cfg, err := ParseServerFlags([]string{})
	if err != nil {
		t.Fatalf("ParseServerFlags failed: %v", err)
	}
	if cfg.DeviceAddr != ":8007" {
		t.Errorf("DeviceAddr = %q, want :8007", cfg.DeviceAddr)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestParseServerFlagsOverrides(t *testing.T) {
	cfg, err := ParseServerFlags([]string{"-device-addr", ":9000", "-log-level", "debug"})
	if err != nil {
		t.Fatalf("ParseServerFlags failed: %v", err)
	}
	if cfg.DeviceAddr != ":9000" {
		t.Errorf("DeviceAddr = %q, want :9000", cfg.DeviceAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestParseServerFlagsRejectsBadLogLevel(t *testing.T) {
	_, err := ParseServerFlags([]string{"-log-level", "verbose"})
	if err == nil {
		t.Fatal("expected an error for an invalid log level")
	}
}

func TestParseServerFlagsYAMLOverlayFlagsWin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("device_addr: \":7000\"\nhttp_addr: \":7080\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := ParseServerFlags([]string{"-config", path, "-http-addr", ":9090"})
	if err != nil {
		t.Fatalf("ParseServerFlags failed: %v", err)
	}
	if cfg.DeviceAddr != ":7000" {
		t.Errorf("DeviceAddr = %q, want :7000 (from overlay)", cfg.DeviceAddr)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090 (explicit flag wins over overlay)", cfg.HTTPAddr)
	}
}

func TestParseClientFlagsRequiresDeviceID(t *testing.T) {
	_, err := ParseClientFlags([]string{"-server-addr", "localhost:8007"})
	if err == nil {
		t.Fatal("expected an error when device-id is missing")
	}
}

func TestParseClientFlagsRequiresServerAddrUnlessDiscover(t *testing.T) {
	_, err := ParseClientFlags([]string{"-device-id", "epson5030ub"})
	if err == nil {
		t.Fatal("expected an error when server-addr is missing and -discover is not set")
	}

	cfg, err := ParseClientFlags([]string{"-device-id", "epson5030ub", "-discover"})
	if err != nil {
		t.Fatalf("ParseClientFlags with -discover failed: %v", err)
	}
	if !cfg.Discover {
		t.Error("Discover should be true")
	}
}

func TestParseClientFlagsOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")
	if err := os.WriteFile(path, []byte("device_id: lutrongrx3000\nserver_addr: 192.0.2.1:8007\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := ParseClientFlags([]string{"-config", path})
	if err != nil {
		t.Fatalf("ParseClientFlags failed: %v", err)
	}
	if cfg.DeviceID != "lutrongrx3000" {
		t.Errorf("DeviceID = %q, want lutrongrx3000", cfg.DeviceID)
	}
	if cfg.ServerAddr != "192.0.2.1:8007" {
		t.Errorf("ServerAddr = %q, want 192.0.2.1:8007", cfg.ServerAddr)
	}
}
