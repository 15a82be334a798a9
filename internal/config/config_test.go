package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("shoptalk-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.History.MaxOpenConns != 10 {
		t.Fatalf("History.MaxOpenConns = %d", cfg.History.MaxOpenConns)
	}
	if cfg.Warehouse.Path != "olist_master.duckdb" {
		t.Fatalf("Warehouse.Path = %q", cfg.Warehouse.Path)
	}
	if cfg.Warehouse.RowLimit != 1000 {
		t.Fatalf("Warehouse.RowLimit = %d", cfg.Warehouse.RowLimit)
	}
	if cfg.Chat.ReplayLimit != 10 {
		t.Fatalf("Chat.ReplayLimit = %d", cfg.Chat.ReplayLimit)
	}
	if cfg.Chat.ContextWindow != 7 {
		t.Fatalf("Chat.ContextWindow = %d", cfg.Chat.ContextWindow)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("shoptalk-api", mapLookup(map[string]string{"SHOPTALK_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load("shoptalk-api", mapLookup(map[string]string{
		"SHOPTALK_HTTP_ADDR":                ":9999",
		"SHOPTALK_HISTORY_DSN":              "postgres://history:secret@db:5432/history",
		"SHOPTALK_WAREHOUSE_PATH":           "/data/warehouse.duckdb",
		"SHOPTALK_WAREHOUSE_DATASET_PREFIX": "datasets/olist",
		"SHOPTALK_CHAT_REPLAY_LIMIT":        "25",
		"SHOPTALK_AI_MODEL":                 "gpt-4.1",
		"SHOPTALK_AI_TEMPERATURE":           "0.4",
		"SHOPTALK_AI_TIMEOUT":               "45s",
		"SHOPTALK_LOG_LEVEL":                "error",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.History.DSN != "postgres://history:secret@db:5432/history" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if cfg.Warehouse.DatasetPrefix != "datasets/olist" {
		t.Fatalf("Warehouse.DatasetPrefix = %q", cfg.Warehouse.DatasetPrefix)
	}
	if cfg.Chat.ReplayLimit != 25 {
		t.Fatalf("Chat.ReplayLimit = %d", cfg.Chat.ReplayLimit)
	}
	if cfg.AI.Model != "gpt-4.1" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.4 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 45*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidProfile(t *testing.T) {
	_, err := Load("shoptalk-api", mapLookup(map[string]string{"SHOPTALK_PROFILE": "staging"}))
	if err == nil {
		t.Fatal("expected error for invalid profile")
	}
	if !strings.Contains(err.Error(), "SHOPTALK_PROFILE") {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":       {"SHOPTALK_HTTP_READ_TIMEOUT": "soon"},
		"bad int":            {"SHOPTALK_CHAT_REPLAY_LIMIT": "many"},
		"bad float":          {"SHOPTALK_AI_TEMPERATURE": "warm"},
		"bad bool":           {"SHOPTALK_LOG_JSON": "maybe"},
		"bad log level":      {"SHOPTALK_LOG_LEVEL": "verbose"},
		"zero replay limit":  {"SHOPTALK_CHAT_REPLAY_LIMIT": "0"},
		"zero context turns": {"SHOPTALK_CHAT_CONTEXT_WINDOW": "0"},
	}
	for name, env := range cases {
		if _, err := Load("shoptalk-api", mapLookup(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("shoptalk-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
