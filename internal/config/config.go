// Package config loads the local node's identity and runtime settings
// from a YAML file, grounded on the viper-based loader in
// orbas1-Synnergy's pkg/config/config.go (SetConfigFile + Unmarshal into a
// mapstructure-tagged struct), adapted to this module's narrower schema.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/megamcloud/tezedge/internal/boxcrypto"
	"github.com/megamcloud/tezedge/p2p/handshake"
)

// Config is the on-disk shape of a node's local identity and runtime
// settings.
type Config struct {
	ListenPort       uint16 `mapstructure:"listen_port" yaml:"listen_port"`
	PublicKey        string `mapstructure:"public_key" yaml:"public_key"`
	SecretKey        string `mapstructure:"secret_key" yaml:"secret_key"`
	ProofOfWorkStamp string `mapstructure:"proof_of_work_stamp" yaml:"proof_of_work_stamp"`
	ChainName        string `mapstructure:"chain_name" yaml:"chain_name"`
	DisableMempool   bool   `mapstructure:"disable_mempool" yaml:"disable_mempool"`
	PrivateNode      bool   `mapstructure:"private_node" yaml:"private_node"`
	AuditDBPath      string `mapstructure:"audit_db_path" yaml:"audit_db_path"`
	MetricsAddr      string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads and unmarshals the YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML, for scaffolding a fresh identity file
// from generated key material.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Identity decodes the hex-encoded key material into a handshake.Identity.
func (c *Config) Identity() (handshake.Identity, error) {
	pub, err := boxcrypto.ParsePublicKey(c.PublicKey)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("config: %w", err)
	}
	sec, err := boxcrypto.ParseSecretKey(c.SecretKey)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("config: %w", err)
	}
	pow, err := hex.DecodeString(c.ProofOfWorkStamp)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("config: proof_of_work_stamp: %w", err)
	}
	return handshake.Identity{
		ListenerPort:     c.ListenPort,
		PublicKey:        pub,
		SecretKey:        sec,
		ProofOfWorkStamp: pow,
		ChainName:        c.ChainName,
		DisableMempool:   c.DisableMempool,
		PrivateNode:      c.PrivateNode,
	}, nil
}
