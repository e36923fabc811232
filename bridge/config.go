// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/vaa"
)

// Configuration keys, settable via config file or environment.
const (
	ConfigFileKey   = "config-file"
	InstanceKey     = "instance"
	GracePeriodKey  = "grace-period"
	GuardianKeysKey = "guardian-keys"
)

// defaultGracePeriod keeps a retired guardian set usable for a day, long
// enough for in-flight signature sets to finalize. Operator policy, not a
// protocol constant.
const defaultGracePeriod uint32 = 24 * 60 * 60

// Config is the bridge configuration fixed at initialization and stored in
// the state record.
type Config struct {
	// GuardianSetGracePeriod is how long, in seconds, a rotated-out guardian
	// set stays live before it expires.
	GuardianSetGracePeriod uint32
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{GuardianSetGracePeriod: defaultGracePeriod}
}

// GenesisConfig is the file-backed configuration consumed by tooling that
// initializes a bridge instance.
type GenesisConfig struct {
	Instance     string   `mapstructure:"instance"`
	GracePeriod  uint32   `mapstructure:"grace-period"`
	GuardianKeys []string `mapstructure:"guardian-keys"`
}

// BuildViper constructs the viper instance backing a GenesisConfig. The
// config file path must be provided via flag or environment; every other key
// may come from the file or the environment.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if !v.IsSet(ConfigFileKey) {
		return nil, fmt.Errorf("%w: %s not set", vaa.ErrInvalidConfig, ConfigFileKey)
	}

	v.SetConfigFile(v.GetString(ConfigFileKey))
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

// NewGenesisConfig builds and validates a GenesisConfig from viper.
func NewGenesisConfig(v *viper.Viper) (GenesisConfig, error) {
	v.SetDefault(GracePeriodKey, defaultGracePeriod)

	var cfg GenesisConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return GenesisConfig{}, err
	}
	return cfg, nil
}

// Validate checks the genesis configuration.
func (c *GenesisConfig) Validate() error {
	if len(c.GuardianKeys) == 0 {
		return fmt.Errorf("%w: no guardian keys", vaa.ErrInvalidConfig)
	}
	if _, err := c.ParsedGuardianKeys(); err != nil {
		return err
	}
	return nil
}

// ParsedGuardianKeys decodes the configured guardian key-hashes.
func (c *GenesisConfig) ParsedGuardianKeys() ([]common.Address, error) {
	keys := make([]common.Address, 0, len(c.GuardianKeys))
	for i, raw := range c.GuardianKeys {
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("%w: guardian key %d is not a 20-byte hex value: %q", vaa.ErrInvalidConfig, i, raw)
		}
		keys = append(keys, common.HexToAddress(raw))
	}
	return keys, nil
}

// BridgeConfig converts the file configuration into the stored Config.
func (c *GenesisConfig) BridgeConfig() Config {
	cfg := DefaultConfig()
	if c.GracePeriod != 0 {
		cfg.GuardianSetGracePeriod = c.GracePeriod
	}
	return cfg
}
