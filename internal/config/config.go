// Package config loads parajoin settings from defaults, an optional
// .parajoin.yaml file and PARAJOIN_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nainya/parajoin/pkg/join"
)

// Config holds resolved settings
type Config struct {
	DataDir     string
	BackupDir   string
	GrpcPort    int
	MetricsPort int
	Separator   string
	ResetPolicy join.ResetPolicy
	LogLevel    string
	LogPretty   bool
	RedisURL    string // empty: in-process leases
	LeaseTTL    time.Duration
}

// JoinOptions returns the engine options described by c
func (c *Config) JoinOptions() join.Options {
	return join.Options{Separator: c.Separator, Reset: c.ResetPolicy}
}

// Defaults registers the default value of every key on v
func Defaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./books")
	v.SetDefault("backup_dir", "")
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("separator", "")
	v.SetDefault("reset_policy", join.ResetOnChange.String())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("redis_url", "")
	v.SetDefault("lease_ttl", "30s")
}

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"data-dir":     "data_dir",
	"separator":    "separator",
	"reset-policy": "reset_policy",
	"log-level":    "log.level",
	"redis-url":    "redis_url",
	"grpc-port":    "grpc_port",
	"metrics-port": "metrics_port",
}

// Load reads settings. An explicit path must exist; otherwise .parajoin.yaml
// is looked up in PARAJOIN_CONFIG_PATH, the working directory and home.
// Flags present in flags and set on the command line win over every other source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix("PARAJOIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".parajoin") // .yaml is implicit
		if override := os.Getenv("PARAJOIN_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath("./")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper resolves a Config from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	policy, err := join.ParseResetPolicy(v.GetString("reset_policy"))
	if err != nil {
		return nil, err
	}
	dataDir, err := homedir.Expand(v.GetString("data_dir"))
	if err != nil {
		return nil, fmt.Errorf("data_dir: %w", err)
	}
	backupDir, err := homedir.Expand(v.GetString("backup_dir"))
	if err != nil {
		return nil, fmt.Errorf("backup_dir: %w", err)
	}
	ttl := v.GetDuration("lease_ttl")
	if ttl <= 0 {
		return nil, fmt.Errorf("lease_ttl must be positive, got %q", v.GetString("lease_ttl"))
	}

	return &Config{
		DataDir:     dataDir,
		BackupDir:   backupDir,
		GrpcPort:    v.GetInt("grpc_port"),
		MetricsPort: v.GetInt("metrics_port"),
		Separator:   v.GetString("separator"),
		ResetPolicy: policy,
		LogLevel:    v.GetString("log.level"),
		LogPretty:   v.GetBool("log.pretty"),
		RedisURL:    v.GetString("redis_url"),
		LeaseTTL:    ttl,
	}, nil
}
