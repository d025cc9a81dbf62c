package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/cache"
	"github.com/CZERTAINLY/notary-scan/internal/feed"
	"github.com/CZERTAINLY/notary-scan/internal/model"
	"github.com/CZERTAINLY/notary-scan/internal/probe"
	"github.com/CZERTAINLY/notary-scan/internal/scan"
	"github.com/CZERTAINLY/notary-scan/internal/store"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "scan probes every TLS service listed in the file (default stdin) once",
		Args:  cobra.MaximumNArgs(1),
		RunE:  doScan,
	}
	addScanFlags(cmd)
	return cmd
}

func addScanFlags(cmd *cobra.Command) {
	d := model.DefaultConfig()
	f := cmd.Flags()
	f.IntP("scans", "s", d.Scan.Rate, "How many scans to run per second.")
	f.IntP("timeout", "w", int(d.Probe.Timeout/time.Second), "Maximum number of seconds each scan will wait for results before giving up.")
	f.Bool("sni", false, "Use Server Name Indication. See section 3.1 of RFC 4366.")
	f.Bool("openssl-only", false, "Probe with the openssl binary only.")
	f.Bool("no-fallback", false, "Do not retry failed probes with the openssl binary.")
	f.String("openssl-binary", d.Probe.OpenSSLBinary, "Path to the openssl binary.")
	f.Int("max-inflight", d.Scan.MaxInFlight, "Maximum number of running probes, 0 means no limit.")
	f.String("service-type", d.Scan.ServiceType, "Service type of TLS services in the input.")

	f.Bool("memcache", false, "Invalidate the notary cache in memcached.")
	f.StringSlice("memcache-servers", []string{"localhost:11211"}, "Memcached servers.")
	f.Bool("memcachier", false, "Invalidate the notary cache in MemCachier.")
	f.StringSlice("memcachier-servers", nil, "MemCachier servers.")
	f.String("memcachier-username", "", "MemCachier username.")
	f.String("memcachier-password", "", "MemCachier password.")
	f.Bool("redis", false, "Invalidate the notary cache in redis.")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL.")
	cmd.MarkFlagsMutuallyExclusive("memcache", "memcachier", "redis")

	f.String("store", d.Store.Driver, "Store of the observations, one of "+fmt.Sprint(model.StoreDrivers()))
	f.String("db-dsn", d.Store.DSN, "Database file (sqlite) or connection string (postgres).")
	f.String("bom-output", "", "CycloneDX output file of the bom store, stdout by default.")
	f.String("pubsub-project", "", "Google Cloud project of the pubsub store.")
	f.String("pubsub-topic", "", "Pub/Sub topic of the pubsub store.")
}

func doScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	lines, err := readTargets(args)
	if err != nil {
		return err
	}

	scanner, closeFn, err := newScanner(ctx, config, bannerOutput(cmd, config))
	if err != nil {
		return err
	}
	defer closeFn()

	sum, err := scanner.Do(ctx, lines)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "scan done",
		"run", sum.RunID.String(),
		"started", sum.Started,
		"failures", sum.Failures,
		"abandoned", sum.Abandoned,
	)
	return nil
}

func readTargets(args []string) ([]string, error) {
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	r, err := feed.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()
	return feed.ReadAll(r)
}

// bannerOutput keeps the standard output clean when the BOM goes there
func bannerOutput(cmd *cobra.Command, cfg model.Config) io.Writer {
	if cfg.Store.StdoutBOM() {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// newScanner wires the store, the cache and the probers. The returned
// function releases them.
func newScanner(ctx context.Context, cfg model.Config, out io.Writer) (*scan.Scanner, func(), error) {
	primary, fallback, err := probers(ctx, cfg.Probe)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	opts := []scan.Option{scan.WithOutput(out)}
	if fallback != nil {
		opts = append(opts, scan.WithFallback(fallback))
	}
	if c != nil {
		opts = append(opts, scan.WithCache(c))
	}

	closeFn := func() {
		var g errgroup.Group
		g.Go(st.Close)
		if c != nil {
			g.Go(c.Close)
		}
		if err := g.Wait(); err != nil {
			slog.ErrorContext(ctx, "closing store or cache failed", "error", err)
		}
	}
	return scan.New(cfg, primary, st, opts...), closeFn, nil
}

// probers selects the primary prober and the optional fallback
func probers(ctx context.Context, cfg model.Probe) (model.Prober, model.Prober, error) {
	openssl := probe.NewOpenSSL(cfg.OpenSSLBinary)
	if cfg.OpenSSLOnly {
		if !openssl.Available() {
			return nil, nil, fmt.Errorf("%w: %s", errNoOpenSSL, cfg.OpenSSLBinary)
		}
		return openssl, nil, nil
	}

	var fallback model.Prober
	if cfg.Fallback {
		if openssl.Available() {
			fallback = openssl
		} else {
			slog.WarnContext(ctx, "openssl binary not found: fallback disabled", "binary", cfg.OpenSSLBinary)
		}
	}
	return probe.NewTLS(), fallback, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
