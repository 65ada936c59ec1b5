package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("WALLET_ADDRESS", "0xabc")

	cfg := FromEnv()
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("wrong default poll interval: %v", cfg.PollInterval)
	}
	if cfg.WriteInterval != time.Minute {
		t.Errorf("wrong default write interval: %v", cfg.WriteInterval)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("wrong default listen addr: %q", cfg.ListenAddr)
	}
	if cfg.Limits.MaxLeverage != 50 {
		t.Errorf("wrong default max leverage: %f", cfg.Limits.MaxLeverage)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("WALLET_ADDRESS", "0xabc")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("USE_MEMORY", "true")
	t.Setenv("MAX_LEVERAGE", "25")

	cfg := FromEnv()
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("poll interval override ignored: %v", cfg.PollInterval)
	}
	if !cfg.UseMemory {
		t.Error("use-memory override ignored")
	}
	if cfg.Limits.MaxLeverage != 25 {
		t.Errorf("max leverage override ignored: %f", cfg.Limits.MaxLeverage)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		WalletAddress: "0xabc",
		UseMemory:     true,
		PollInterval:  time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	missing := valid
	missing.WalletAddress = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing wallet address")
	}

	noDSN := valid
	noDSN.UseMemory = false
	if err := noDSN.Validate(); err == nil {
		t.Error("expected error when DSNs are missing without in-memory storage")
	}

	badPoll := valid
	badPoll.PollInterval = 0
	if err := badPoll.Validate(); err == nil {
		t.Error("expected error for zero poll interval")
	}
}
