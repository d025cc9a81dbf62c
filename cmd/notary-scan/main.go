package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/notary-scan/internal/log"
	"github.com/CZERTAINLY/notary-scan/internal/model"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	userConfigPath string // /default/config/path/notary-scan on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagQuiet          bool   // value of --quiet flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "notary-scan")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Log(ctx, log.LevelCritical, "notary-scan failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "notary-scan",
		Short:        "Probes TLS services and records their certificate fingerprints",
		SilenceUsage: true,
		// never print messages
		SilenceErrors: true,
		// parse the config, setup logging
		PersistentPreRunE: initNotary,
	}

	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is notary-scan.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Verbose mode. Print more info about each scan.")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Quiet mode. Only print system-critical problems.")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "config prints the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(config.Redacted()); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a notary-scan",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			_, _ = fmt.Fprintln(out, "notary-scan: version info not available")
			return
		}

		if configPath != "" {
			_, _ = fmt.Fprintf(out, "config:      %s\n", configPath)
		}
		_, _ = fmt.Fprintf(out, "notary-scan: %s\n", info.Main.Version)
		_, _ = fmt.Fprintf(out, "go:          %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				_, _ = fmt.Fprintf(out, "commit:      %s\n", s.Value)
			case "vcs.time":
				_, _ = fmt.Fprintf(out, "date:        %s\n", s.Value)
			case "vcs.modified":
				_, _ = fmt.Fprintf(out, "dirty:       %s\n", s.Value)
			}
		}
	},
}

func initNotary(cmd *cobra.Command, _ []string) error {
	var err error
	config, configPath, err = loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errInvalidConfig, err)
	}

	// initialize logging
	level := log.Level(config.Service.Verbose, config.Service.Quiet)
	slog.SetDefault(log.New(cmd.ErrOrStderr(), level))

	slog.Debug("notary-scan run", "configPath", configPath)
	slog.Debug("notary-scan run", "config", config.Redacted())
	return nil
}

var errInvalidConfig = errors.New("invalid configuration")
