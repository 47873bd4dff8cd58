package config

// Package config provides a reusable loader for raichain configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"raichain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a raichain node. It mirrors the
// structure of the YAML files under cmd/raichaind/config.
type Config struct {
	Node struct {
		DataDir   string `mapstructure:"data_dir" json:"data_dir"`
		LogLevel  string `mapstructure:"log_level" json:"log_level"`
		LogFormat string `mapstructure:"log_format" json:"log_format"`
	} `mapstructure:"node" json:"node"`

	Store struct {
		Path           string `mapstructure:"path" json:"path"`
		OpenTimeoutSec int    `mapstructure:"open_timeout_seconds" json:"open_timeout_seconds"`
	} `mapstructure:"store" json:"store"`

	Process struct {
		TransactionsPerCredit uint32 `mapstructure:"transactions_per_credit" json:"transactions_per_credit"`
		BoundedSkewSeconds    uint64 `mapstructure:"bounded_skew_seconds" json:"bounded_skew_seconds"`
		RewardRateBasisPoints uint64 `mapstructure:"reward_rate_basis_points" json:"reward_rate_basis_points"`
		AdmitQueueCapacity    int    `mapstructure:"admit_queue_capacity" json:"admit_queue_capacity"`
		ForkQueueCapacity     int    `mapstructure:"fork_queue_capacity" json:"fork_queue_capacity"`
	} `mapstructure:"process" json:"process"`

	Election struct {
		QualifiedRepWeight       string  `mapstructure:"qualified_rep_weight" json:"qualified_rep_weight"`
		QuorumFactor             float64 `mapstructure:"quorum_factor" json:"quorum_factor"`
		Workers                  int     `mapstructure:"workers" json:"workers"`
		TimeoutSeconds           uint64  `mapstructure:"timeout_seconds" json:"timeout_seconds"`
		ReconfirmIntervalSeconds uint64  `mapstructure:"reconfirm_interval_seconds" json:"reconfirm_interval_seconds"`
	} `mapstructure:"election" json:"election"`

	Bootstrap struct {
		Peers                []string `mapstructure:"peers" json:"peers"`
		BatchSize            int      `mapstructure:"batch_size" json:"batch_size"`
		SlowPeerFloorBlkPerS float64  `mapstructure:"slow_peer_floor_blocks_per_sec" json:"slow_peer_floor_blocks_per_sec"`
		DialTimeoutSeconds   int      `mapstructure:"dial_timeout_seconds" json:"dial_timeout_seconds"`
	} `mapstructure:"bootstrap" json:"bootstrap"`

	Wallet struct {
		SeedFile    string `mapstructure:"seed_file" json:"seed_file"`
		ScryptN     int    `mapstructure:"scrypt_n" json:"scrypt_n"`
		ScryptR     int    `mapstructure:"scrypt_r" json:"scrypt_r"`
		ScryptP     int    `mapstructure:"scrypt_p" json:"scrypt_p"`
		NodeWSURL   string `mapstructure:"node_ws_url" json:"node_ws_url"`
		AutoReceive bool   `mapstructure:"auto_receive" json:"auto_receive"`
	} `mapstructure:"wallet" json:"wallet"`

	Server struct {
		ListenAddr     string `mapstructure:"listen_addr" json:"listen_addr"`
		MetricsEnabled bool   `mapstructure:"metrics_enabled" json:"metrics_enabled"`
	} `mapstructure:"server" json:"server"`

	Callback struct {
		URLs      []string `mapstructure:"urls" json:"urls"`
		WSEnabled bool     `mapstructure:"ws_enabled" json:"ws_enabled"`
	} `mapstructure:"callback" json:"callback"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/raichaind/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("RAICHAIN")
	viper.AutomaticEnv() // picks up RAICHAIN_* overrides, including from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RAICHAIN_ENV environment
// variable to pick the overlay file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RAICHAIN_ENV", ""))
}
