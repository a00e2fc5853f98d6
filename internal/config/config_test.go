package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("CALENDAR_MAX_SUMMARY_DAYS", "31")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Calendar.MaxSummaryDays != 31 {
		t.Fatalf("max_summary_days = %d, want 31", cfg.Calendar.MaxSummaryDays)
	}
	if cfg.Calendar.DefaultPageSize != 10 {
		t.Fatalf("default_page_size = %d, want 10", cfg.Calendar.DefaultPageSize)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Redis.SummaryTTL != 5*time.Minute {
		t.Fatalf("summary_ttl = %v", cfg.Redis.SummaryTTL)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
database:
  driver: sqlite
  sqlite_path: /tmp/calendar.db
auth:
  disabled: true
calendar:
  strict_status_transitions: true
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Calendar.StrictStatusTransitions {
		t.Fatalf("expected strict transitions from file")
	}
	if cfg.Database.SQLitePath != "/tmp/calendar.db" {
		t.Fatalf("sqlite_path = %q", cfg.Database.SQLitePath)
	}
}

func TestValidate_RequiresSecret(t *testing.T) {
	cfg := &Config{
		Database: DBConfig{Driver: "sqlite", SQLitePath: "x.db"},
		GRPC:     GRPCConfig{Addr: ":9090"},
		Calendar: CalendarConfig{DefaultPageSize: 10, MaxSummaryDays: 31},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error without jwt secret")
	}

	cfg.Auth.Disabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &Config{
		Database: DBConfig{Driver: "mysql"},
		GRPC:     GRPCConfig{Addr: ":9090"},
		Auth:     AuthConfig{Disabled: true},
		Calendar: CalendarConfig{DefaultPageSize: 10, MaxSummaryDays: 31},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
