// Package config loads coredoc's process configuration from environment
// variables (and an optional .env file), the way every service in this
// lineage does it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings a coredoc node needs at boot. Fields are
// populated by Load from environment variables prefixed COREDOC_.
type Config struct {
	NodeID       string `mapstructure:"node_id"`
	DataDir      string `mapstructure:"data_dir"`
	SchemaDir    string `mapstructure:"schema_dir"`
	ListenAddr   string `mapstructure:"listen_addr"`
	AdminAddr    string `mapstructure:"admin_addr"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	EncryptionKeyHex string `mapstructure:"encryption_key_hex"`

	MaxWritesPerSecond   int   `mapstructure:"max_writes_per_second"`
	MaxConcurrentQueries int64 `mapstructure:"max_concurrent_queries"`
	MaxResultSetDocs     int   `mapstructure:"max_result_set_docs"`
	QueryTimeoutMS       int   `mapstructure:"query_timeout_ms"`
}

// Load reads COREDOC_-prefixed environment variables (and an optional .env
// file in the working directory) into target.
func Load(target any) error {
	return load("COREDOC_", target)
}

func load(prefix string, target any) error {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: read .env: %w", err)
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key, value := pair[0], pair[1]
		if !strings.HasPrefix(key, prefixUpper) {
			continue
		}
		// coredoc's Config is flat, so env keys map straight to lowercased
		// mapstructure tags (COREDOC_NODE_ID -> node_id) rather than the
		// dotted nested-struct paths a deeper config would need.
		propKey := strings.ToLower(strings.TrimPrefix(key, prefixUpper))
		v.Set(propKey, value)
	}

	if err := v.Unmarshal(target); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}

// Default returns a Config with coredoc's baseline defaults, to be
// overridden by whatever Load finds in the environment.
func Default() Config {
	return Config{
		DataDir:     "./data",
		SchemaDir:   "./schema",
		ListenAddr:  "127.0.0.1:7400",
		AdminAddr:   "127.0.0.1:7401",
		MetricsAddr: "127.0.0.1:7402",
		LogLevel:    "INFO",
		LogFormat:   "json",

		MaxWritesPerSecond:   0,
		MaxConcurrentQueries: 100,
		MaxResultSetDocs:     10000,
		QueryTimeoutMS:       30000,
	}
}
