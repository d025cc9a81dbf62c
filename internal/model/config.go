package model

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreBOM      = "bom"
	StorePubSub   = "pubsub"

	CacheNone       = ""
	CacheMemcache   = "memcache"
	CacheMemcachier = "memcachier"
	CacheRedis      = "redis"
)

type Config struct {
	Scan    Scan        `mapstructure:"scan" yaml:"scan"`
	Probe   Probe       `mapstructure:"probe" yaml:"probe"`
	Store   StoreConfig `mapstructure:"store" yaml:"store"`
	Cache   CacheConfig `mapstructure:"cache" yaml:"cache"`
	Service Service     `mapstructure:"service" yaml:"service"`
}

// Scan drives the dispatcher.
type Scan struct {
	Rate           int           `mapstructure:"rate" yaml:"rate"`                       // targets per pacing pause
	Pace           time.Duration `mapstructure:"pace" yaml:"pace"`                       // the pause itself
	MaxInFlight    int           `mapstructure:"max_inflight" yaml:"max_inflight"`       // 0 => unbounded
	ServiceType    string        `mapstructure:"service_type" yaml:"service_type"`       // marker of TLS services
	StragglerAge   time.Duration `mapstructure:"straggler_age" yaml:"straggler_age"`     // diagnostic threshold
	StragglerEvery int           `mapstructure:"straggler_every" yaml:"straggler_every"` // started tasks between checks
}

type Probe struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SNI           bool          `mapstructure:"sni" yaml:"sni"`
	Fallback      bool          `mapstructure:"fallback" yaml:"fallback"`
	OpenSSLOnly   bool          `mapstructure:"openssl_only" yaml:"openssl_only"`
	OpenSSLBinary string        `mapstructure:"openssl_binary" yaml:"openssl_binary"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"` // postgres | sqlite | bom | pubsub
	DSN       string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	BOMOutput string `mapstructure:"bom_output" yaml:"bom_output,omitempty"` // "" or "-" => stdout
	Project   string `mapstructure:"project" yaml:"project,omitempty"`
	Topic     string `mapstructure:"topic" yaml:"topic,omitempty"`
}

type CacheConfig struct {
	Type     string   `mapstructure:"type" yaml:"type"` // "" | memcache | memcachier | redis
	Servers  []string `mapstructure:"servers" yaml:"servers,omitempty"`
	Username string   `mapstructure:"username" yaml:"username,omitempty"`
	Password string   `mapstructure:"password" yaml:"password,omitempty"`
	URL      string   `mapstructure:"url" yaml:"url,omitempty"`
}

type Service struct {
	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet"`
	Cron    string `mapstructure:"cron" yaml:"cron,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Scan: Scan{
			Rate:           10,
			Pace:           time.Second,
			MaxInFlight:    1000,
			ServiceType:    ServiceTypeTLS,
			StragglerAge:   20 * time.Second,
			StragglerEvery: 1000,
		},
		Probe: Probe{
			Timeout:       20 * time.Second,
			Fallback:      true,
			OpenSSLBinary: "openssl",
		},
		Store: StoreConfig{
			Driver: StoreSQLite,
			DSN:    "notary.sqlite",
		},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Scan.Rate < 1 {
		errs = append(errs, fmt.Errorf("scan.rate must be positive, got %d", c.Scan.Rate))
	}
	if c.Scan.Pace < 0 {
		errs = append(errs, fmt.Errorf("scan.pace must not be negative, got %s", c.Scan.Pace))
	}
	if c.Scan.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("scan.max_inflight must not be negative, got %d", c.Scan.MaxInFlight))
	}
	if c.Scan.ServiceType == "" {
		errs = append(errs, errors.New("scan.service_type is empty"))
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout))
	}
	if c.Service.Verbose && c.Service.Quiet {
		errs = append(errs, errors.New("service.verbose and service.quiet are mutually exclusive"))
	}

	switch c.Store.Driver {
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for %s", c.Store.Driver))
		}
	case StoreBOM:
	case StorePubSub:
		if c.Store.Project == "" || c.Store.Topic == "" {
			errs = append(errs, errors.New("store.project and store.topic are required for pubsub"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver))
	}

	switch c.Cache.Type {
	case CacheNone:
	case CacheMemcache, CacheMemcachier:
		if len(c.Cache.Servers) == 0 {
			errs = append(errs, fmt.Errorf("cache.servers are required for %s", c.Cache.Type))
		}
	case CacheRedis:
		if c.Cache.URL == "" {
			errs = append(errs, errors.New("cache.url is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type: unsupported value %q", c.Cache.Type))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to be printed or logged
func (c Config) Redacted() Config {
	if c.Cache.Password != "" {
		c.Cache.Password = redacted
	}
	if c.Cache.Servers != nil {
		c.Cache.Servers = slices.Clone(c.Cache.Servers)
	}
	return c
}

const redacted = "*****"

// StdoutBOM says if the store writes its document to the standard output
func (c StoreConfig) StdoutBOM() bool {
	return c.Driver == StoreBOM && (c.BOMOutput == "" || c.BOMOutput == "-")
}

// StoreDrivers lists supported values of store.driver
func StoreDrivers() []string {
	return slices.Clone([]string{StorePostgres, StoreSQLite, StoreBOM, StorePubSub})
}
