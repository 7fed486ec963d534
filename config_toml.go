package statesync

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
)

// LoadNetworkConfigTOML reads the configuration surface from a TOML file,
// for deployments that standardize on TOML service config instead of
// tinyconf's JSON. Missing fields keep DefaultNetworkConfig's values.
func LoadNetworkConfigTOML(path string) (NetworkConfig, error) {
	cfg := DefaultNetworkConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkConfig{}, fmt.Errorf("statesync: read toml config: %w", err)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return NetworkConfig{}, fmt.Errorf("statesync: parse toml config: %w", err)
	}

	if err := tree.Unmarshal(&cfg); err != nil {
		return NetworkConfig{}, fmt.Errorf("statesync: unmarshal toml config: %w", err)
	}
	return cfg, nil
}

// SaveNetworkConfigTOML writes cfg to path in TOML form.
func SaveNetworkConfigTOML(path string, cfg NetworkConfig) error {
	tree, err := toml.TreeFromMap(map[string]interface{}{
		"dejitterBufferLength": cfg.DejitterBufferLength,
		"networkSendRate":      cfg.NetworkSendRate,
		"ticksBeforeFreeze":    cfg.TicksBeforeFreeze,
		"forceUpdates":         cfg.ForceUpdates,
		"tickDurationMillis":   cfg.TickDurationMillis,
	})
	if err != nil {
		return fmt.Errorf("statesync: build toml tree: %w", err)
	}

	data, err := tree.Marshal()
	if err != nil {
		return fmt.Errorf("statesync: marshal toml config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("statesync: write toml config: %w", err)
	}
	return nil
}
