// Package app wires the stores, services and delivery plumbing shared by the API
// server and the worker manager.
package app

import (
	"context"
	"fmt"
	"time"

	"lending-engine/internal/audit"
	"lending-engine/internal/common/aws"
	"lending-engine/internal/common/config"
	"lending-engine/internal/common/database"
	"lending-engine/internal/common/logger"
	"lending-engine/internal/common/observability"
	"lending-engine/internal/directory"
	"lending-engine/internal/friendship"
	"lending-engine/internal/loan"
	"lending-engine/internal/membership"
	"lending-engine/internal/notification"
	"lending-engine/internal/push"
	"lending-engine/internal/registry"
)

// App holds every long-lived dependency. Close releases them in reverse order.
type App struct {
	Config        *config.Config
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Observability *observability.Observability

	Directory  *directory.Directory
	Registry   *registry.Registry
	Relay      *push.RedisRelay
	Dispatcher *notification.Dispatcher

	Loans   *loan.Service
	Members *membership.Service
	Friends *friendship.Service
	Inbox   *notification.Inbox

	logger logger.Logger
}

// RetryWithBackoff calls operation until it succeeds or maxRetries attempts have
// failed, doubling the delay after each failure.
func RetryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}
		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// New connects to the backing stores and builds the services.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:        cfg,
		Observability: observability.New(cfg.Observability),
		logger:        log,
	}

	err := RetryWithBackoff(func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		a.Postgres = pg
		return nil
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Server.MigrateOnStart {
		if err := a.Postgres.Migrate(ctx, log); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a.Directory = directory.New(a.Postgres.DB)
	a.Registry = registry.New(config.GetDuration(cfg.Push.WriteTimeout), log)

	pusher, err := a.connectPusher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var auditLog loan.AuditLog
	if cfg.Database.Elasticsearch.Enabled {
		indexer, err := a.connectAudit(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		auditLog = indexer
	}

	mirror, err := a.contactMirror(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	var mirrors []notification.Mirror
	if mirror != nil {
		mirrors = append(mirrors, mirror)
	}

	notifications := notification.NewPostgresStore(a.Postgres.DB)
	a.Dispatcher = notification.NewDispatcher(notifications, pusher, log, mirrors...)
	a.Inbox = notification.NewInbox(notifications)

	authority := membership.NewAuthority(membership.NewPostgresStore(a.Postgres.DB))
	a.Members = membership.NewService(membership.NewPostgresStore(a.Postgres.DB), authority, a.Directory, a.Dispatcher, log)
	a.Loans = loan.NewService(loan.NewPostgresStore(a.Postgres.DB), a.Directory, authority, a.Dispatcher, auditLog, a.Observability, log)
	a.Friends = friendship.NewService(friendship.NewPostgresStore(a.Postgres), a.Directory, a.Dispatcher, log)

	return a, nil
}

// RequireRelay turns the push relay on for a process that holds no live
// connections of its own, so its pushes reach the API processes.
func RequireRelay(cfg *config.Config, log logger.Logger) {
	if cfg.Push.RelayEnabled {
		return
	}
	log.Warn("push.relay_enabled is off; enabling it since this process serves no live connections", map[string]interface{}{
		"channel": cfg.Push.RelayChannel,
	})
	cfg.Push.RelayEnabled = true
}

// connectPusher returns the local pusher, or the Redis relay when it is enabled.
func (a *App) connectPusher(ctx context.Context) (push.Pusher, error) {
	cfg := a.Config
	if !cfg.Push.RelayEnabled {
		return push.NewLocal(a.Registry), nil
	}

	err := RetryWithBackoff(func() error {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			return err
		}
		a.Redis = rc
		return nil
	}, 10, 2*time.Second, a.logger, "Redis connection")
	if err != nil {
		return nil, err
	}
	a.Relay = push.NewRedisRelay(a.Redis.Client, cfg.Push.RelayChannel, a.Registry, a.logger)
	if err := a.Relay.Start(ctx); err != nil {
		return nil, fmt.Errorf("start push relay: %w", err)
	}
	a.logger.Info("Push relay subscribed", map[string]interface{}{"channel": cfg.Push.RelayChannel})
	return a.Relay, nil
}

func (a *App) connectAudit(ctx context.Context) (*audit.Indexer, error) {
	cfg := a.Config.Database.Elasticsearch
	err := RetryWithBackoff(func() error {
		es, err := database.NewElasticsearch(cfg)
		if err != nil {
			return err
		}
		if err := es.Ping(ctx); err != nil {
			return err
		}
		a.Elasticsearch = es
		return nil
	}, 15, 2*time.Second, a.logger, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	if err := a.Elasticsearch.EnsureIndex(ctx, cfg.LoanIndex, audit.LoanEventMapping); err != nil {
		return nil, fmt.Errorf("ensure loan index: %w", err)
	}
	a.logger.Info("Elasticsearch connected successfully", map[string]interface{}{"index": cfg.LoanIndex})
	return audit.NewIndexer(a.Elasticsearch.Client, cfg.LoanIndex), nil
}

// contactMirror returns nil when neither email nor SMS is enabled.
func (a *App) contactMirror(ctx context.Context) (*notification.ContactMirror, error) {
	n := a.Config.Notifications
	if !n.Email.Enabled && !n.SMS.Enabled {
		return nil, nil
	}

	var (
		email notification.EmailSender
		sms   notification.SMSSender
	)
	if n.Email.Enabled {
		ses, err := aws.NewSESClient(ctx, n.AWS.Region, n.Email.FromEmail)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for SES: %w", err)
		}
		email = ses
	}
	if n.SMS.Enabled {
		sns, err := aws.NewSNSClient(ctx, n.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("load AWS config for SNS: %w", err)
		}
		sms = sns
	}
	return notification.NewContactMirror(a.Directory, email, sms, a.logger), nil
}

// Ready pings every configured backing store.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Postgres.Ping(ctx); err != nil {
		return err
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			return err
		}
	}
	if a.Elasticsearch != nil {
		if err := a.Elasticsearch.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close drains in-flight deliveries, drops live connections and closes the stores.
func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	if a.Relay != nil {
		if err := a.Relay.Close(); err != nil {
			a.logger.Warn("Error closing push relay", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
	a.Observability.Shutdown()
}
