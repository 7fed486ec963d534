package statesync

import (
	"time"

	"github.com/mxkacsa/tinyconf"
)

// NetworkConfig is the recognized option table from spec §6.
type NetworkConfig struct {
	// DejitterBufferLength is the slot count for the client incoming
	// buffer and the server outgoing queue.
	DejitterBufferLength int `json:"dejitterBufferLength"`

	// NetworkSendRate is the tick stride between sent snapshots; it is
	// also the dejitter buffer's divisor.
	NetworkSendRate int32 `json:"networkSendRate"`

	// TicksBeforeFreeze is the tick gap before a remote entity becomes
	// frozen. 0 disables freezing.
	TicksBeforeFreeze int32 `json:"ticksBeforeFreeze"`

	// ForceUpdates, if true, makes an entity emit deltas even when
	// dirtyFlags is empty.
	ForceUpdates bool `json:"forceUpdates"`

	// TickDurationMillis is the wall-clock duration of one simulation
	// tick, used by SmoothingBuffer/PredictionBuffer to convert ticks to
	// interpolation time. Not part of spec §6's table but required to
	// make the buffers usable; defaults to a 20Hz tick (50ms).
	TickDurationMillis int64 `json:"tickDurationMillis"`
}

// DefaultNetworkConfig returns the conservative defaults this package ships
// with absent any config file.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		DejitterBufferLength: 32,
		NetworkSendRate:      2,
		TicksBeforeFreeze:    20,
		ForceUpdates:         false,
		TickDurationMillis:   50,
	}
}

// TickDuration returns the config's tick duration as a time.Duration.
func (c NetworkConfig) TickDuration() time.Duration {
	return time.Duration(c.TickDurationMillis) * time.Millisecond
}

// EntityConfig projects the subset of NetworkConfig each Entity needs.
func (c NetworkConfig) EntityConfig() EntityConfig {
	return EntityConfig{
		DejitterBufferLength: c.DejitterBufferLength,
		NetworkSendRate:      c.NetworkSendRate,
		TicksBeforeFreeze:    c.TicksBeforeFreeze,
		ForceUpdates:         c.ForceUpdates,
		TickDuration:         c.TickDuration(),
	}
}

// LoadNetworkConfig reads the configuration surface from a JSON file at
// path via tinyconf, creating it with defaults if it does not yet exist,
// and applying STATESYNC_-prefixed environment variable overrides.
func LoadNetworkConfig(path string) (NetworkConfig, error) {
	cfg := DefaultNetworkConfig()
	if err := tinyconf.LoadOrCreate(path, &cfg); err != nil {
		return NetworkConfig{}, err
	}
	if err := tinyconf.ApplyEnvOverrides(&cfg, "STATESYNC"); err != nil {
		return NetworkConfig{}, err
	}
	return cfg, nil
}

// WatchNetworkConfig reloads cfg from path whenever the file changes on
// disk, invoking onReload after each successful reload. It returns a
// closer that stops watching.
func WatchNetworkConfig(path string, cfg *NetworkConfig, onReload func(NetworkConfig)) (func() error, error) {
	closer, err := tinyconf.Watch(path, cfg, func() {
		if onReload != nil {
			onReload(*cfg)
		}
	})
	if err != nil {
		return nil, err
	}
	return closer.Close, nil
}
