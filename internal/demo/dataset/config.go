package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	DatasetName string
	TableName   string
	Rows        int
	PartSize    int
	Seed        int64
}

func DefaultConfig() Config {
	return Config{
		DatasetName: "olist",
		TableName:   "olist_master",
		Rows:        5000,
		PartSize:    1000,
		Seed:        time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "SHOPTALK_DEMO_DATASET", &cfg.DatasetName); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SHOPTALK_DEMO_TABLE", &cfg.TableName); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SHOPTALK_DEMO_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SHOPTALK_DEMO_PART_SIZE", &cfg.PartSize); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "SHOPTALK_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DatasetName) == "" {
		return Config{}, fmt.Errorf("SHOPTALK_DEMO_DATASET is required")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return Config{}, fmt.Errorf("SHOPTALK_DEMO_TABLE is required")
	}
	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("SHOPTALK_DEMO_ROWS must be > 0")
	}
	if cfg.PartSize <= 0 {
		return Config{}, fmt.Errorf("SHOPTALK_DEMO_PART_SIZE must be > 0")
	}

	cfg.DatasetName = strings.TrimSpace(cfg.DatasetName)
	cfg.TableName = strings.TrimSpace(cfg.TableName)
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
