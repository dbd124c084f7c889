package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// viper treats empty variables as unset.
	for _, k := range []string{"PORT", "GRPC_PORT", "GRPC_HOST", "GRPC_ADDR", "DOODLE_GRPC_ADDR", "DOODLE_STORAGE_DRIVER", "DOODLE_NOTIFY_DRIVER"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCAddr() != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.StorageDriver != StoragePostgres || cfg.NotifyDriver != NotifyLog {
		t.Fatalf("drivers = %q/%q", cfg.StorageDriver, cfg.NotifyDriver)
	}
	if cfg.MaxConflictRetries != 3 || cfg.ConflictBackoff != 25*time.Millisecond {
		t.Fatalf("conflict retry = %d/%s", cfg.MaxConflictRetries, cfg.ConflictBackoff)
	}
	if cfg.DBSlowQuery != 200*time.Millisecond {
		t.Fatalf("slow query = %s, want 200ms", cfg.DBSlowQuery)
	}
}

func TestLoad_ReadsEnvAndAddrOverride(t *testing.T) {
	t.Setenv("DOODLE_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("DOODLE_STORAGE_DRIVER", "Memory")
	t.Setenv("DOODLE_NOTIFY_TIMEOUT", "3s")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.GRPCAddr() != "127.0.0.1:6000" {
		t.Fatalf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.StorageDriver != StorageMemory {
		t.Fatalf("storage driver = %q", cfg.StorageDriver)
	}
	if cfg.NotifyTimeout != 3*time.Second {
		t.Fatalf("notify timeout = %s", cfg.NotifyTimeout)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("redis addr = %q", cfg.RedisAddr)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		name, key, value string
	}{
		{"duration", "DOODLE_SHUTDOWN_TIMEOUT", "soon"},
		{"storage driver", "DOODLE_STORAGE_DRIVER", "sqlite"},
		{"notify driver", "DOODLE_NOTIFY_DRIVER", "smtp"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
