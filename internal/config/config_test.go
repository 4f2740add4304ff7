package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "http://127.0.0.1:8899")
	t.Setenv("TOKEN_MINT", "DnrcdQVH7fdbmm4EyD7LjT9mNNozF5HuWMeKcpvjpump")
	t.Setenv("KEYPAIR_PATH", "/tmp/keypair.json")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("MOD_IDS", " 42, 7 ,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CallTimeout != defaultCallTimeout {
		t.Fatalf("expected call timeout %s, got %s", defaultCallTimeout, cfg.CallTimeout)
	}
	if cfg.TokenDecimals != 6 {
		t.Fatalf("expected 6 decimals, got %d", cfg.TokenDecimals)
	}
	if len(cfg.PriceSources) != 4 || cfg.PriceSources[0] != "solscan" {
		t.Fatalf("unexpected price sources %v", cfg.PriceSources)
	}
	if !cfg.IsModerator("7") || cfg.IsModerator("8") {
		t.Fatalf("unexpected moderator set %v", cfg.ModIDs)
	}
	if cfg.PostgresClaims() || cfg.RedisCooldowns() {
		t.Fatalf("expected file claims and memory cooldowns by default")
	}
	if cfg.DryRun || cfg.AnnounceDisbursements || !cfg.SchedulerEnabled || cfg.RegistrationsFile != defaultRegistrations {
		t.Fatalf("unexpected toggles dry_run=%v scheduler=%v registrations=%s", cfg.DryRun, cfg.SchedulerEnabled, cfg.RegistrationsFile)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("TOKEN_MINT", "")
	t.Setenv("KEYPAIR_PATH", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required vars")
	}
}

func TestLoadPostgresClaimsNeedsDatabase(t *testing.T) {
	setRequired(t)
	t.Setenv("CLAIMS_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("EXTERNAL_CALL_TIMEOUT", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.CallTimeout != 2*time.Second {
		t.Fatalf("expected 2s call timeout, got %s", cfg.CallTimeout)
	}

	t.Setenv("EXTERNAL_CALL_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadBooleans(t *testing.T) {
	setRequired(t)
	t.Setenv("TRANSFER_DRY_RUN", "true")
	t.Setenv("SCHEDULER_ENABLED", "0")
	t.Setenv("ANNOUNCE_DISBURSEMENTS", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.DryRun || cfg.SchedulerEnabled || !cfg.AnnounceDisbursements {
		t.Fatalf("unexpected toggles dry_run=%v scheduler=%v announce=%v", cfg.DryRun, cfg.SchedulerEnabled, cfg.AnnounceDisbursements)
	}

	t.Setenv("TRANSFER_DRY_RUN", "maybe")
	if _, err := Load(); err == nil {
		t.Fatal("expected invalid bool error")
	}
}
