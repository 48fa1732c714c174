package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.App.Name != "solewatcher" {
		t.Fatalf("app name = %q", cfg.App.Name)
	}
	if cfg.Scheduler.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %s", cfg.Scheduler.PollInterval)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Fatalf("workers = %d", cfg.Scheduler.Workers)
	}
	if cfg.Ledger.DefaultStaleness != 24*time.Hour {
		t.Fatalf("default staleness = %s", cfg.Ledger.DefaultStaleness)
	}
	if cfg.Alerting.RetryAttempts != 3 {
		t.Fatalf("retry attempts = %d", cfg.Alerting.RetryAttempts)
	}
	if cfg.Alerting.DeliveryRetention != 168*time.Hour {
		t.Fatalf("delivery retention = %s", cfg.Alerting.DeliveryRetention)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
database:
  dsn: postgres://localhost/solewatcher
ledger:
  default_staleness: 12h
  source_staleness:
    awin: 6h
scheduler:
  workers: 8
alerting:
  retry_backoff: 5s
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.DSN != "postgres://localhost/solewatcher" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Ledger.DefaultStaleness != 12*time.Hour {
		t.Fatalf("default staleness = %s", cfg.Ledger.DefaultStaleness)
	}
	if got := cfg.Ledger.StalenessFor("awin"); got != 6*time.Hour {
		t.Fatalf("awin staleness = %s", got)
	}
	if got := cfg.Ledger.StalenessFor("stockx"); got != 12*time.Hour {
		t.Fatalf("fallback staleness = %s", got)
	}
	if cfg.Scheduler.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Scheduler.Workers)
	}
	if cfg.Alerting.RetryBackoff != 5*time.Second {
		t.Fatalf("retry backoff = %s", cfg.Alerting.RetryBackoff)
	}
}

func TestNormalizeLowersSourceKeys(t *testing.T) {
	cfg := &Config{Ledger: LedgerConfig{
		DefaultStaleness: 24 * time.Hour,
		SourceStaleness:  map[string]time.Duration{"AWIN": 6 * time.Hour},
	}}
	cfg.normalize()

	if _, ok := cfg.Ledger.SourceStaleness["awin"]; !ok {
		t.Fatalf("override keys not lower-cased: %v", cfg.Ledger.SourceStaleness)
	}
	if got := cfg.Ledger.StalenessFor("AWIN"); got != 6*time.Hour {
		t.Fatalf("mixed-case lookup = %s, want 6h", got)
	}
	if got := cfg.Ledger.StalenessFor("awin"); got != 6*time.Hour {
		t.Fatalf("lower-case lookup = %s, want 6h", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
scheduler:
  workers: 0
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("zero workers must fail validation")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("default = %d, want 500", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("override = %d, want 42", got)
	}
}
