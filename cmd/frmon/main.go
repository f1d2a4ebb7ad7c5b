package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"frmon/internal/application/usecase/monitor"
	"frmon/internal/infrastructure/config"
	"frmon/internal/infrastructure/logger"
	sqliterepo "frmon/internal/infrastructure/storage/sqlite"
	"frmon/internal/infrastructure/svc"
	"frmon/internal/interfaces/console"

	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config.toml (optional, env overrides)")
	once := flag.Bool("once", false, "run a single check and exit")
	report := flag.Bool("report", false, "with -once, also send the full cycle report")
	history := flag.Int("history", 0, "print the last N reports from the sqlite journal and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	closer, err := logger.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer closer.Close()
	log.Debug().Str("config", cfg.String()).Msg("config loaded")

	if *history > 0 {
		if err := printHistory(cfg.SQLite.Path, *history); err != nil {
			log.Error().Err(err).Msg("read report history failed")
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("service context initialization failed")
		return 1
	}
	defer sc.Close()

	service, err := monitor.NewService(sc.BuildMonitorServiceDeps())
	if err != nil {
		log.Error().Err(err).Msg("monitor initialization failed")
		return 1
	}

	if *once {
		rep, err := service.RunOnce(ctx, *report)
		if err != nil {
			log.Error().Err(err).Msg("check failed")
			return 1
		}
		log.Info().
			Str("cycle", rep.ID).
			Int("pairs", len(rep.Pairs)).
			Int("alerts", len(rep.Alerts)).
			Msg("check done")
		return 0
	}

	log.Info().
		Str("config", *configPath).
		Int("check_interval_min", cfg.App.CheckIntervalMin).
		Int("summary_interval_min", cfg.App.SummaryIntervalMin).
		Float64("threshold", cfg.App.Threshold).
		Msg("frmon started")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("monitor service exited")
		return 1
	}
	return 0
}

// printHistory 按时间顺序打印 sqlite 中最近的报告
func printHistory(path string, n int) error {
	repo, err := sqliterepo.New(path)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	reports, err := repo.ListReports(ctx, "", n)
	if err != nil {
		return err
	}
	out := console.NewNotifier()
	for i := len(reports) - 1; i >= 0; i-- {
		if err := out.SendReport(ctx, reports[i]); err != nil {
			return err
		}
	}
	return nil
}
