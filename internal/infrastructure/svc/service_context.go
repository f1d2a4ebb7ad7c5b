package svc

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"frmon/internal/application/port"
	"frmon/internal/application/usecase/monitor"
	"frmon/internal/infrastructure/config"
	"frmon/internal/infrastructure/factory"
	"frmon/internal/infrastructure/metrics"
	"frmon/internal/infrastructure/notify"
	"frmon/internal/infrastructure/notify/telegram"
	"frmon/internal/infrastructure/storage/composite"
	pgrepo "frmon/internal/infrastructure/storage/postgres"
	redisrepo "frmon/internal/infrastructure/storage/redis"
	sqliterepo "frmon/internal/infrastructure/storage/sqlite"
	"frmon/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	apiClients *factory.APIClients
	sources    *factory.Sources
	reports    *composite.Repo
	sqliteRepo *sqliterepo.Repo

	// 输出端口
	Notifier port.Notifier
	Metrics  port.Metrics

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	apiClients, err := factory.NewAPIClients(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize api clients: %w", err)
	}

	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		apiClients:  apiClients,
		Metrics:     port.NoopMetrics(),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化：存储 -> 通知 -> 数据源 -> 指标
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	if err := sc.initializeNotifier(); err != nil {
		return err
	}

	sources, err := factory.NewSources(sc.Ctx, sc.Config, sc.apiClients)
	if err != nil {
		return fmt.Errorf("rate sources: %w", err)
	}
	sc.sources = sources
	sc.closerChain = append(sc.closerChain, sources.Close)

	if sc.Config.Metrics.Enabled {
		sc.initMetrics()
	}

	log.Info().
		Str("notifier", sc.Notifier.Name()).
		Str("rate_source", sc.Config.App.RateSource).
		Int("report_sinks", sc.reports.Len()).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 初始化报告存储 (Redis / SQLite / Postgres)
func (sc *ServiceContext) initializeStorage() error {
	var repos []port.ReportRepository
	// 先注册关闭回调，中途失败时已打开的 repo 也能被释放
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Int("sinks", len(repos)).Msg("closing report storage")
		return composite.New(repos...).Close()
	})

	if sc.Config.Redis.Enabled {
		repo, err := sc.initRedis()
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		repos = append(repos, repo)
	}

	if sc.Config.SQLite.Enabled {
		repo, err := sqliterepo.New(sc.Config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite repo creation failed: %w", err)
		}
		sc.sqliteRepo = repo
		repos = append(repos, repo)
		log.Info().
			Str("path", sc.Config.SQLite.Path).
			Int("retention_days", sc.Config.SQLite.RetentionDays).
			Msg("✓ SQLite initialized")
	}

	if sc.Config.Postgres.Enabled {
		repo, err := pgrepo.New(sc.Config.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		repos = append(repos, repo)
		log.Info().Msg("✓ Postgres initialized")
	}

	sc.reports = composite.New(repos...)
	if sc.sqliteRepo != nil && sc.Config.SQLite.RetentionDays > 0 {
		sc.startRetention(sc.sqliteRepo, sc.Config.ReportRetention(), time.Hour)
	}
	return nil
}

// startRetention 定期删除超过保留期的报告，关闭时先于存储停止
func (sc *ServiceContext) startRetention(repo *sqliterepo.Repo, keep, every time.Duration) {
	ctx, cancel := context.WithCancel(sc.Ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			n, err := repo.PruneReports(ctx, time.Now().Add(-keep))
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("report pruning failed")
			} else if n > 0 {
				log.Info().Int64("deleted", n).Dur("keep", keep).Msg("old reports pruned")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	sc.closerChain = append(sc.closerChain, func() error {
		cancel()
		<-done
		return nil
	})
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() (*redisrepo.Repo, error) {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	repo := redisrepo.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.Redis.ReportStream,
		sc.Config.Redis.ReportChannel,
		sc.Config.Redis.MaxLen,
	)
	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Str("stream", repo.Stream()).
		Msg("✓ Redis initialized")
	return repo, nil
}

// initializeNotifier 主通知渠道决定送达与否，其余渠道只做旁路
func (sc *ServiceContext) initializeNotifier() error {
	var (
		primary     port.Notifier
		secondaries []port.Notifier
	)
	if sc.Config.Telegram.Enabled {
		primary = telegram.New(sc.Config.Telegram.BotToken, sc.Config.Telegram.ChatID, telegram.Options{
			APIURL: sc.Config.Telegram.APIURL,
		})
	}
	if sc.Config.Console.Enabled {
		if primary == nil {
			primary = console.NewNotifier()
		} else {
			secondaries = append(secondaries, console.NewNotifier())
		}
	}
	if primary == nil {
		return ErrNoNotifier
	}
	if sc.reports.Len() > 0 {
		secondaries = append(secondaries, notify.NewRepositoryNotifier("storage", sc.reports))
	}

	if len(secondaries) == 0 {
		sc.Notifier = primary
	} else {
		sc.Notifier = notify.NewMulti(primary, secondaries...)
	}
	return nil
}

func (sc *ServiceContext) initMetrics() {
	m := metrics.New()
	srv := metrics.NewServer(sc.Config.Metrics.Addr, m)
	srv.Start()
	sc.Metrics = m
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("stopping metrics server")
		return srv.Close()
	})
}

// BuildMonitorServiceDeps 构建 Monitor Service 所需的所有依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	cfg := sc.Config
	return monitor.ServiceDeps{
		PositionSources: sc.sources.Positions,
		RateSources:     sc.sources.Rates,
		Notifier:        sc.Notifier,
		Metrics:         sc.Metrics,
		CheckInterval:   cfg.CheckInterval(),
		SummaryInterval: cfg.SummaryInterval(),
		ErrorBackoff:    cfg.ErrorBackoff(),
		SummaryRetry:    cfg.SummaryRetry(),
		Threshold:       cfg.App.Threshold,
		RateConcurrency: cfg.App.RateConcurrency,
	}
}

// Close 逆序释放资源
func (sc *ServiceContext) Close() error {
	var errs []error
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			errs = append(errs, err)
		}
	}
	sc.closerChain = nil
	if len(errs) > 0 {
		log.Error().Errs("errors", errs).Msg("errors during shutdown")
	}
	return errors.Join(errs...)
}
