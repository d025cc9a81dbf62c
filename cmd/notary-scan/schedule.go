package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/CZERTAINLY/notary-scan/internal/scan"
	"github.com/CZERTAINLY/notary-scan/internal/service"

	"github.com/spf13/cobra"
)

var errNoCron = errors.New("service.cron is empty: set it in the config or use --cron")

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule file",
		Short: "schedule repeats the scan of the file according to a cron expression",
		Long: `schedule runs until interrupted. The target file is read again before each
scan, so it can be regenerated between runs. A run which is due while the
previous one is still going is skipped. Standard input can be read only
once, hence the file is mandatory.`,
		Args: cobra.ExactArgs(1),
		RunE: doSchedule,
	}
	addScanFlags(cmd)
	cmd.Flags().String("cron", "", "Standard 5 field cron expression or a descriptor like @hourly.")
	cmd.Flags().Bool("now", false, "Start the first scan immediately.")
	return cmd
}

func doSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if config.Service.Cron == "" {
		return errNoCron
	}

	scanner, closeFn, err := newScanner(ctx, config, bannerOutput(cmd, config))
	if err != nil {
		return err
	}
	defer closeFn()

	job := func(ctx context.Context) error {
		lines, err := readTargets(args)
		if err != nil {
			return err
		}
		_, err = scanner.Do(ctx, lines)
		if errors.Is(err, scan.ErrInterrupted) && ctx.Err() != nil {
			// shutdown, not a failure
			return nil
		}
		return err
	}

	supervisor, err := service.NewSupervisor(ctx, config.Service.Cron, job)
	if err != nil {
		return err
	}
	if now, _ := cmd.Flags().GetBool("now"); now {
		supervisor.Start()
	}
	slog.InfoContext(ctx, "scan scheduled", "cron", config.Service.Cron)
	return supervisor.Do(ctx)
}
