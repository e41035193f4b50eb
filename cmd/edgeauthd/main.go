// edgeauthd is the edge authentication gateway. It serves the login, refresh,
// logout and identity endpoints, enforces the route table on /api/ and forwards
// permitted requests to an upstream with the caller's identity attached.
//
// With --dev it runs self-contained on miniredis and an in-memory session store,
// seeded with one account per role.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/session"
	"github.com/MrEthical07/edgeauth/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

const purgeInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		dev         bool
		devPassword string
		migrate     bool
		logLevel    string
	)

	flagSet := pflag.NewFlagSet("edgeauthd", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides config)")
	flagSet.BoolVar(&dev, "dev", false, "run on miniredis and in-memory stores")
	flagSet.StringVar(&devPassword, "dev-password", "dev-password", "password of the seeded --dev accounts")
	flagSet.BoolVar(&migrate, "migrate", false, "create the Postgres tables before serving")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fc, err := loadFileConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		fc.Listen = listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	getenv := os.Getenv
	if dev {
		getenv = devEnv(os.Getenv)
		fc.Session.Secure = new(bool)
	}
	cfg, err := fc.engineConfig(getenv)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var d *deps
	if dev {
		d, err = devDeps(cfg, devPassword)
	} else {
		d, err = prodDeps(ctx, fc, logger, migrate)
	}
	if err != nil {
		return err
	}
	defer d.close()

	engine, err := edgeauth.New().
		WithConfig(cfg).
		WithRedis(d.redis).
		WithRepository(d.repo).
		WithUserProvider(d.users).
		WithAuditSink(edgeauth.NewLogSink(logger.With("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	handler, err := newServer(engine, logger, serverOptions{
		cors:             fc.corsConfig(),
		secureCookie:     fc.secureCookie(),
		upstream:         fc.Upstream,
		ownershipURL:     fc.Access.OwnershipURL,
		ownershipTimeout: fc.Access.OwnershipTimeout,
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if d.purge != nil {
		go purgeLoop(ctx, d.purge, logger)
	}

	srv := &http.Server{
		Addr:              fc.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("edgeauthd listening", "addr", fc.Listen, "dev", dev)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type deps struct {
	redis redis.UniversalClient
	repo  session.Repository
	users edgeauth.UserProvider
	purge func(context.Context, time.Time) (int64, error)
	close func()
}

// devEnv supplies a fixed signing secret when none is configured.
func devEnv(getenv func(string) string) func(string) string {
	return func(key string) string {
		if v := getenv(key); v != "" || key != secretEnv {
			return v
		}
		return "edgeauthd-dev-secret-not-for-production-use"
	}
}

func devDeps(cfg edgeauth.Config, devPassword string) (*deps, error) {
	mr, err := miniredis.Run()
	if err != nil {
		return nil, fmt.Errorf("start miniredis: %w", err)
	}
	users, err := newDevUsers(cfg.Password, devPassword)
	if err != nil {
		mr.Close()
		return nil, err
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	return &deps{
		redis: client,
		repo:  session.NewMemoryRepository(),
		users: users,
		close: func() {
			_ = client.Close()
			mr.Close()
		},
	}, nil
}

func prodDeps(ctx context.Context, fc fileConfig, logger *slog.Logger, migrate bool) (*deps, error) {
	if fc.PostgresDSN == "" {
		return nil, errors.New("postgres_dsn is required outside --dev")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{fc.RedisAddr}})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	pool, err := pgxpool.New(ctx, fc.PostgresDSN)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		_ = client.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if migrate {
		if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
			pool.Close()
			_ = client.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	repo := postgres.NewRepository(pool, logger)
	return &deps{
		redis: client,
		repo:  repo,
		users: postgres.NewUsers(pool),
		purge: repo.PurgeExpired,
		close: func() {
			pool.Close()
			_ = client.Close()
		},
	}, nil
}

func purgeLoop(ctx context.Context, purge func(context.Context, time.Time) (int64, error), logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := purge(ctx, now)
			if err != nil {
				logger.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
