package config

import "testing"

func withEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

func TestLoadFailsWithoutEncryptionKey(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail without ENCRYPTION_KEY set")
	}
}

func TestLoadAppliesStrategyDefaults(t *testing.T) {
	withEnv(t, "ENCRYPTION_KEY", "01234567890123456789012345678901")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Strategy.PrimaryExchange != "binance" {
		t.Fatalf("expected default primary exchange binance, got %s", cfg.Strategy.PrimaryExchange)
	}
	if cfg.Strategy.MaxConcurrentTrades != 10 {
		t.Fatalf("expected default max concurrent trades 10, got %d", cfg.Strategy.MaxConcurrentTrades)
	}
	if len(cfg.Strategy.SymbolsToTrade) != 2 {
		t.Fatalf("expected default symbol universe of 2, got %v", cfg.Strategy.SymbolsToTrade)
	}
	if cfg.RedisURL == "" {
		t.Fatalf("expected a default redis URL")
	}
}

func TestLoadParsesSymbolsToTradeCSV(t *testing.T) {
	withEnv(t, "ENCRYPTION_KEY", "01234567890123456789012345678901")
	withEnv(t, "SYMBOLS_TO_TRADE", "BTCUSDT, ETHUSDT ,SOLUSDT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(cfg.Strategy.SymbolsToTrade) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Strategy.SymbolsToTrade)
	}
	for i, s := range want {
		if cfg.Strategy.SymbolsToTrade[i] != s {
			t.Fatalf("expected %v, got %v", want, cfg.Strategy.SymbolsToTrade)
		}
	}
}

func TestLoadVenueCredentialsOnlyPopulatesConfiguredVenues(t *testing.T) {
	withEnv(t, "ENCRYPTION_KEY", "01234567890123456789012345678901")
	withEnv(t, "BINANCE_API_KEY", "key")
	withEnv(t, "BINANCE_API_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	creds, ok := cfg.Venues.Credentials["binance"]
	if !ok {
		t.Fatalf("expected binance credentials to be populated")
	}
	if creds.APIKey != "key" || creds.APISecret != "secret" {
		t.Fatalf("unexpected credential values: %+v", creds)
	}
	if _, ok := cfg.Venues.Credentials["okx"]; ok {
		t.Fatalf("expected okx to be absent when unconfigured")
	}
}
