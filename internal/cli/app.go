package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/standup/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/standup/internal/adapter/notifier"
	"github.com/xiaot623/gogo/standup/internal/config"
	"github.com/xiaot623/gogo/standup/internal/metrics"
	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/repository"
	"github.com/xiaot623/gogo/standup/internal/service"
	"github.com/xiaot623/gogo/standup/policy"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.Load(envFile)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}
	return log, nil
}

func openStore(cfg *config.Config) (*repository.SQLiteStore, error) {
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

func newNotifier(cfg *config.Config, log *logger.Logger) (notifier.Notifier, error) {
	n, err := notifier.New(notifier.Options{
		Kind:         cfg.Notifier,
		IngressURL:   cfg.IngressURL,
		RedisAddr:    cfg.RedisAddr,
		RedisChannel: cfg.RedisChannel,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}
	return n, nil
}

func newPolicyEngine(cfg *config.Config) (*policy.Engine, error) {
	engine, err := policy.LoadEngine(context.Background(), cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	return engine, nil
}

func newService(store *repository.SQLiteStore, n notifier.Notifier, engine *policy.Engine, cfg *config.Config, log *logger.Logger, rec metrics.Recorder) *service.Service {
	return service.New(store, agentclient.NewClient(), n, engine, cfg,
		service.WithLogger(log),
		service.WithMetrics(rec),
	)
}

// seedRoster loads roster participants into the identity store.
func seedRoster(ctx context.Context, svc *service.Service, cfg *config.Config) error {
	if cfg.Roster == nil {
		return nil
	}
	if err := svc.SeedParticipants(ctx, cfg.Roster.Seed()); err != nil {
		return fmt.Errorf("failed to seed roster: %w", err)
	}
	return nil
}

// session holds the components of a one-shot command.
type session struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *repository.SQLiteStore
	notifier notifier.Notifier
	svc      *service.Service
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, store: store}

	if s.notifier, err = newNotifier(cfg, log); err != nil {
		s.Close()
		return nil, err
	}
	engine, err := newPolicyEngine(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.svc = newService(store, s.notifier, engine, cfg, log, metrics.Noop{})

	if err := seedRoster(cmd.Context(), s.svc, cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() error {
	var result *multierror.Error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c, ok := s.notifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.log.Sync()
	return result.ErrorOrNil()
}
