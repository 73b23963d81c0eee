package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/datasync"
	"VolumeSentinel/internal/logger"
	"VolumeSentinel/internal/metrics"
	"VolumeSentinel/internal/notifier"
	"VolumeSentinel/internal/recorder"
	"VolumeSentinel/internal/report"
	"VolumeSentinel/internal/runner"
	"VolumeSentinel/internal/scheduler"
	"VolumeSentinel/internal/store"
)

const usage = `usage: sentinel <command> [flags]

commands:
  screen     sync the universe and rank today's volume spikes
  backtest   replay the detector over stored history
  serve      run screen and backtest on their cron schedules
`

func main() {
	os.Exit(sentinel(os.Args[1:]))
}

// sentinel runs one command and returns the process exit code. Deferred
// cleanup, including the logger flush, has run by the time it returns.
func sentinel(argv []string) int {
	if len(argv) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd, args := argv[0], argv[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
	offline := fs.Bool("offline", false, "backtest: use stored data without syncing")
	top := fs.Int("top", 10, "screen: hits per rule to print")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	path := *cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		return 1
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd, cfg, log, *offline, *top); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("interrupted, stored series are intact")
			return 0
		}
		log.Error("command failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cmd string, cfg *config.Config, log *zap.Logger, offline bool, top int) error {
	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	fetcher := collector.NewEastmoneyFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.DataSource.Timeout)
	log.Info("data source", zap.String("name", fetcher.Name()), zap.String("store", cfg.Store.Backend))

	syncer, err := datasync.NewSyncer(st, fetcher, cfg.Sync, log)
	if err != nil {
		return err
	}

	rec := openRecorder(cfg, log)
	defer rec.Close()

	var notif notifier.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notif = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
	}
	r := runner.New(cfg, syncer, rec, notif, log)

	switch cmd {
	case "screen":
		rep, err := r.Screen(ctx)
		if rep != nil {
			fmt.Println(report.FormatScreen(rep, top))
		}
		return err
	case "backtest":
		rep, err := r.Backtest(ctx, !offline)
		if rep != nil {
			fmt.Println(report.FormatBacktest(rep))
		}
		return err
	case "serve":
		return serve(ctx, cfg, r, log)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func serve(ctx context.Context, cfg *config.Config, r *runner.Runner, log *zap.Logger) error {
	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
	}

	sched := scheduler.NewScheduler(ctx, r, log)
	if err := sched.RegisterAll(cfg.Schedule.ScreenCron, cfg.Schedule.BacktestCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info("RUN_ON_START enabled, executing screen now")
		go sched.RunScreenNow()
	}

	log.Info("VolumeSentinel is running, press Ctrl+C to stop")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.Store.Backend == "sqlite" {
		return store.NewSQLiteStore(cfg.Store.SQLitePath, log)
	}
	return store.NewCSVStore(cfg.Store.Dir, log)
}

func openRecorder(cfg *config.Config, log *zap.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
	if err != nil {
		log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	return sr
}
