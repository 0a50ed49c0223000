package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Chain        string
	RegistryKind string
	RPCURL       string
	Block        uint64
	Out          string
	PGDSN        string
	ChunkSize    int
	DayBlocks    uint64
	FeedBaseURL  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain", "ethereum")
	v.SetDefault("registry-kind", "main")
	v.SetDefault("chunk-size", 200)
	v.SetDefault("out", "./data/pools.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Chain:        v.GetString("chain"),
		RegistryKind: v.GetString("registry-kind"),
		RPCURL:       v.GetString("rpc"),
		Block:        v.GetUint64("block"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		ChunkSize:    v.GetInt("chunk-size"),
		DayBlocks:    v.GetUint64("day-blocks"),
		FeedBaseURL:  v.GetString("feed-base-url"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
