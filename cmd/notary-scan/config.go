package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/notary-scan/internal/model"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "NOTARY"

// flagKeys maps command line flags to configuration keys. Flags which do not
// map 1:1 are applied in applyFlags.
var flagKeys = map[string]string{
	"verbose":        "service.verbose",
	"quiet":          "service.quiet",
	"scans":          "scan.rate",
	"max-inflight":   "scan.max_inflight",
	"service-type":   "scan.service_type",
	"sni":            "probe.sni",
	"openssl-only":   "probe.openssl_only",
	"openssl-binary": "probe.openssl_binary",
	"store":          "store.driver",
	"db-dsn":         "store.dsn",
	"bom-output":     "store.bom_output",
	"pubsub-project": "store.project",
	"pubsub-topic":   "store.topic",
	"cron":           "service.cron",
}

// loadConfig merges, in this order of precedence: command line flags,
// NOTARY_* environment variables, the config file and the defaults.
func loadConfig(cmd *cobra.Command) (model.Config, string, error) {
	v := viper.New()
	setDefaults(v, model.DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := findConfig()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return model.Config{}, path, fmt.Errorf("%w: reading %s: %w", errInvalidConfig, path, err)
		}
	}

	flags := cmd.Flags()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return model.Config{}, path, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var cfg model.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Config{}, path, fmt.Errorf("%w: %w", errInvalidConfig, err)
	}
	if err := applyFlags(flags, &cfg); err != nil {
		return model.Config{}, path, err
	}
	return cfg, path, nil
}

// findConfig returns the config file to load or an empty string.
func findConfig() string {
	if envConfig, ok := os.LookupEnv(envPrefix + "_CONFIG"); ok {
		return envConfig
	}
	if flagConfigFilePath != "" {
		return flagConfigFilePath
	}
	for _, d := range []string{".", userConfigPath} {
		path := filepath.Join(d, "notary-scan.yaml")
		if exists(path) {
			return path
		}
	}
	return ""
}

func setDefaults(v *viper.Viper, d model.Config) {
	v.SetDefault("scan.rate", d.Scan.Rate)
	v.SetDefault("scan.pace", d.Scan.Pace)
	v.SetDefault("scan.max_inflight", d.Scan.MaxInFlight)
	v.SetDefault("scan.service_type", d.Scan.ServiceType)
	v.SetDefault("scan.straggler_age", d.Scan.StragglerAge)
	v.SetDefault("scan.straggler_every", d.Scan.StragglerEvery)
	v.SetDefault("probe.timeout", d.Probe.Timeout)
	v.SetDefault("probe.sni", d.Probe.SNI)
	v.SetDefault("probe.fallback", d.Probe.Fallback)
	v.SetDefault("probe.openssl_only", d.Probe.OpenSSLOnly)
	v.SetDefault("probe.openssl_binary", d.Probe.OpenSSLBinary)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.bom_output", d.Store.BOMOutput)
	v.SetDefault("store.project", d.Store.Project)
	v.SetDefault("store.topic", d.Store.Topic)
	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.servers", d.Cache.Servers)
	v.SetDefault("cache.username", d.Cache.Username)
	v.SetDefault("cache.password", d.Cache.Password)
	v.SetDefault("cache.url", d.Cache.URL)
	v.SetDefault("service.verbose", d.Service.Verbose)
	v.SetDefault("service.quiet", d.Service.Quiet)
	v.SetDefault("service.cron", d.Service.Cron)
}

// applyFlags handles the flags with a different shape than the config: the
// timeout in seconds, the negative --no-fallback and the cache selectors.
func applyFlags(flags *pflag.FlagSet, cfg *model.Config) error {
	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		secs, err := flags.GetInt("timeout")
		if err != nil {
			return err
		}
		cfg.Probe.Timeout = seconds(secs)
	}
	if changed(flags, "no-fallback") {
		cfg.Probe.Fallback = false
	}

	switch {
	case changed(flags, "memcache"):
		servers, err := flags.GetStringSlice("memcache-servers")
		if err != nil {
			return err
		}
		cfg.Cache = model.CacheConfig{Type: model.CacheMemcache, Servers: servers}
	case changed(flags, "memcachier"):
		servers, err := flags.GetStringSlice("memcachier-servers")
		if err != nil {
			return err
		}
		username, _ := flags.GetString("memcachier-username")
		password, _ := flags.GetString("memcachier-password")
		cfg.Cache = model.CacheConfig{
			Type:     model.CacheMemcachier,
			Servers:  servers,
			Username: username,
			Password: password,
		}
	case changed(flags, "redis"):
		url, err := flags.GetString("redis-url")
		if err != nil {
			return err
		}
		cfg.Cache = model.CacheConfig{Type: model.CacheRedis, URL: url}
	}
	return nil
}

func changed(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && f.Changed && f.Value.String() == "true"
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

var errNoOpenSSL = errors.New("openssl binary not found")
