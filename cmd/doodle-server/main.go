package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"doodle/backend/internal/config"
	"doodle/backend/internal/notify"
	"doodle/backend/internal/notify/queue"
	"doodle/backend/internal/service/booking"
	"doodle/backend/internal/service/slots"
	"doodle/backend/internal/service/users"
	"doodle/backend/internal/store"
	"doodle/backend/internal/store/memory"
	"doodle/backend/internal/store/postgres"
	grpcTransport "doodle/backend/internal/transport/grpc"
	"doodle/backend/migrations"
)

const serviceName = "doodle-server"

func main() {
	// .env is optional.
	_ = godotenv.Load()

	serve := serveCommand()
	app := &cli.App{
		Name:   serviceName,
		Usage:  "Meeting scheduling and slot booking over gRPC.",
		Action: serve.Action,
		Commands: []*cli.Command{
			serve,
			migrateCommand(),
			workerCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func setup() (config.Config, *slog.Logger, error) {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, log, fmt.Errorf("config load: %w", err)
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)
	return cfg, log, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", serviceName),
	)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the gRPC booking service.",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting",
				slog.String("grpc_addr", cfg.GRPCAddr()),
				slog.String("storage", cfg.StorageDriver),
				slog.String("notify", cfg.NotifyDriver),
				slog.String("log_level", cfg.LogLevel),
			)

			st, closeStore, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			sender, closeSender := openSender(cfg, log)
			defer closeSender()

			dispatcher := notify.NewDispatcher(sender, log, notify.DispatcherConfig{
				Concurrency: cfg.NotifyConcurrency,
				Timeout:     cfg.NotifyTimeout,
			})

			server := grpcTransport.NewBookingServer(
				users.NewService(st),
				slots.NewService(st),
				booking.NewService(st, dispatcher, log, booking.Config{
					MaxConflictRetries: cfg.MaxConflictRetries,
					ConflictBackoff:    cfg.ConflictBackoff,
				}),
				log,
			)

			interceptors := []grpc.UnaryServerInterceptor{grpcTransport.RequestTimeoutInterceptor(cfg.GRPCRequestTimeout)}
			if cfg.RateLimitRPS > 0 {
				limiter := grpcTransport.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
				interceptors = append(interceptors, limiter.Interceptor(log))
			}
			grpcServer := grpc.NewServer(
				grpc.ForceServerCodec(grpcTransport.Codec{}),
				grpc.ChainUnaryInterceptor(interceptors...),
			)
			grpcTransport.RegisterBookingServiceServer(grpcServer, server)

			lis, err := net.Listen("tcp", cfg.GRPCAddr())
			if err != nil {
				return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCAddr(), err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
				if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					return fmt.Errorf("grpc serve: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutdown signal received", slog.Duration("timeout", cfg.ShutdownTimeout))
				stopWithin(log, cfg.ShutdownTimeout, grpcServer.GracefulStop, grpcServer.Stop)
				log.Info("grpc server stopped")
				return nil
			})
			serveErr := g.Wait()

			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := dispatcher.Close(drainCtx); err != nil {
				log.Warn("notification drain incomplete", slog.Any("err", err))
			}

			return serveErr
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema migrations to the configured database.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "rollback", Usage: "revert the last applied migration group instead"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			db, err := openDatabase(c.Context, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := postgres.Close(db); err != nil {
					log.Warn("database close failed", slog.Any("err", err))
				}
			}()

			if c.Bool("rollback") {
				return migrations.Rollback(c.Context, db, log)
			}
			return migrations.Apply(c.Context, db, log)
		},
	}
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Deliver queued notifications from Redis.",
		Action: func(c *cli.Context) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
				Concurrency:     cfg.NotifyConcurrency,
				Queues:          map[string]int{cfg.NotifyQueue: 1},
				ShutdownTimeout: cfg.ShutdownTimeout,
			})
			mux := asynq.NewServeMux()
			queue.NewHandler(notify.NewLogSender(log), log).Register(mux)

			if err := srv.Start(mux); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}
			log.Info("notification worker started",
				slog.String("redis_addr", cfg.RedisAddr),
				slog.String("queue", cfg.NotifyQueue),
			)

			<-ctx.Done()
			log.Info("shutdown signal received")
			srv.Shutdown()
			return nil
		},
	}
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return postgres.NewRepo(db), closeDB, nil
}

func openDatabase(ctx context.Context, cfg config.Config, log *slog.Logger) (*bun.DB, error) {
	log.Info("connecting to database", databaseAttr(cfg.DatabaseURL))
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       cfg.DBSlowQuery,
	}, log)
	if err != nil {
		log.Error("database connection failed", databaseAttr(cfg.DatabaseURL), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
	}
	return db, nil
}

func openSender(cfg config.Config, log *slog.Logger) (notify.Notifier, func()) {
	if cfg.NotifyDriver != config.NotifyAsynq {
		return notify.NewLogSender(log), func() {}
	}

	client := asynq.NewClient(redisOpt(cfg))
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn("queue client close failed", slog.Any("err", err))
		}
	}
	log.Info("queueing notifications", slog.String("redis_addr", cfg.RedisAddr), slog.String("queue", cfg.NotifyQueue))
	return queue.NewEnqueuer(client, cfg.NotifyQueue, cfg.NotifyMaxRetry), closeClient
}

func redisOpt(cfg config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// stopWithin runs graceful and falls back to force once timeout has passed.
func stopWithin(log *slog.Logger, timeout time.Duration, graceful, force func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		graceful()
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("graceful stop timed out; forcing", slog.Duration("timeout", timeout))
		force()
		<-done
	}
}

// parseLogLevel accepts the slog level names, offsets such as "debug+2", and
// "warning". Anything else falls back to info.
func parseLogLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// databaseAttr describes databaseURL without its credentials.
func databaseAttr(databaseURL string) slog.Attr {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Host == "" {
		return slog.String("db", "invalid")
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	attrs := []any{
		slog.String("host", u.Hostname()),
		slog.String("port", port),
		slog.String("name", strings.TrimPrefix(u.Path, "/")),
	}
	if u.User != nil {
		attrs = append(attrs, slog.String("user", u.User.Username()))
	}
	return slog.Group("db", attrs...)
}
