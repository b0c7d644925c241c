package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/xiaot623/gogo/standup/internal/adapter/notifier"
	"github.com/xiaot623/gogo/standup/internal/config"
	"github.com/xiaot623/gogo/standup/internal/metrics"
	"github.com/xiaot623/gogo/standup/internal/observability"
	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/repository"
	"github.com/xiaot623/gogo/standup/internal/service"
	httptransport "github.com/xiaot623/gogo/standup/internal/transport/http"
	"github.com/xiaot623/gogo/standup/internal/transport/rpc"
	"github.com/xiaot623/gogo/standup/policy"
)

// ServeCmd runs the HTTP and RPC servers and the stale-run watchdog.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API, the trigger API and the RPC trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app := fx.New(
				fx.NopLogger,
				fx.Supply(cfg),
				fx.Provide(
					newLogger,
					provideStore,
					provideNotifier,
					newPolicyEngine,
					metrics.NewPrometheusRecorder,
					provideService,
				),
				fx.Invoke(registerServers),
			)
			app.Run()
			return app.Err()
		},
	}
}

func provideStore(lc fx.Lifecycle, cfg *config.Config) (*repository.SQLiteStore, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func provideNotifier(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (notifier.Notifier, error) {
	n, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}
	if c, ok := n.(io.Closer); ok {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return c.Close() },
		})
	}
	return n, nil
}

func provideService(store *repository.SQLiteStore, n notifier.Notifier, engine *policy.Engine, cfg *config.Config, log *logger.Logger, rec *metrics.PrometheusRecorder) *service.Service {
	return newService(store, n, engine, cfg, log, rec)
}

type servers struct {
	external *echo.Echo
	internal *echo.Echo
	rpc      *rpc.Server
}

func registerServers(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *logger.Logger, svc *service.Service, rec *metrics.PrometheusRecorder) error {
	rpcServer, err := rpc.NewServer(svc, log)
	if err != nil {
		return err
	}
	srv := &servers{
		external: httptransport.NewExternalServer(svc, rec.Handler()),
		internal: httptransport.NewInternalServer(svc, log),
		rpc:      rpcServer,
	}

	var (
		stopWatchdog context.CancelFunc
		otelShutdown func(context.Context) error
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting standup engine",
				"http_port", cfg.HTTPPort,
				"internal_port", cfg.InternalPort,
				"rpc_port", cfg.RPCPort,
				"database", cfg.DatabaseURL,
				"notifier", cfg.Notifier,
			)

			otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
				Enabled:     cfg.OtelEnabled,
				ServiceName: "standup",
				Endpoint:    cfg.OtelEndpoint,
				Insecure:    cfg.OtelInsecure,
			})

			if err := seedRoster(ctx, svc, cfg); err != nil {
				return err
			}
			if _, err := svc.Reconcile(ctx); err != nil {
				log.Warn("startup reconciliation failed", "error", err)
			}

			fail := func(name string, err error) {
				log.Error("server stopped unexpectedly", "server", name, "error", err)
				_ = shutdowner.Shutdown(fx.ExitCode(1))
			}
			go func() {
				if err := srv.external.Start(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fail("external", err)
				}
			}()
			go func() {
				if err := srv.internal.Start(fmt.Sprintf(":%d", cfg.InternalPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fail("internal", err)
				}
			}()
			go func() {
				if err := srv.rpc.Start(fmt.Sprintf(":%d", cfg.RPCPort)); err != nil {
					fail("rpc", err)
				}
			}()

			var watchdogCtx context.Context
			watchdogCtx, stopWatchdog = context.WithCancel(context.Background())
			go svc.RunStaleRunMonitor(watchdogCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down standup engine")
			if stopWatchdog != nil {
				stopWatchdog()
			}

			var result *multierror.Error
			if err := srv.external.Shutdown(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("external server: %w", err))
			}
			if err := srv.internal.Shutdown(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("internal server: %w", err))
			}
			if err := srv.rpc.Shutdown(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("rpc server: %w", err))
			}
			if otelShutdown != nil {
				if err := otelShutdown(ctx); err != nil {
					result = multierror.Append(result, fmt.Errorf("otel: %w", err))
				}
			}
			log.Sync()
			return result.ErrorOrNil()
		},
	})
	return nil
}
