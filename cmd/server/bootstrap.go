package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/api"
	"github.com/charlesng35/workpass/internal/app"
	"github.com/charlesng35/workpass/internal/app/maintenance"
	"github.com/charlesng35/workpass/internal/cache"
	"github.com/charlesng35/workpass/internal/database"
	"github.com/charlesng35/workpass/internal/events"
	"github.com/charlesng35/workpass/internal/middleware"
	"github.com/charlesng35/workpass/internal/monitoring"
	"github.com/charlesng35/workpass/internal/monitoring/checks"
	"github.com/charlesng35/workpass/internal/services"
	"github.com/charlesng35/workpass/pkg/logger"
	"github.com/charlesng35/workpass/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher events.Publisher
	Services  *api.Services
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected")
		}
	}

	var readiness []monitoring.Check
	switch {
	case stack.Redis != nil:
		redisStore := cache.NewRedisStore(stack.Redis, cfg.Cache.Redis.KeyPrefix)
		stack.RateStore = middleware.NewCacheRateStore(redisStore)
		readiness = append(readiness, checks.Redis(redisStore))
	case cfg.Cache.Redis.Enabled:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
		readiness = append(readiness, checks.Redis(nil))
	default:
		stack.RateStore = middleware.NewCacheRateStore(dbStore)
	}

	stack.Publisher, err = buildPublisher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if kafka, ok := stack.Publisher.(*events.KafkaPublisher); ok {
		readiness = append(readiness, checks.Kafka(kafka))
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		return nil, err
	}

	stack.Services, err = api.NewServices(stack.DB, cfg, api.ServiceOptions{
		Notifier:  notifier,
		Publisher: stack.Publisher,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	created, err := services.EnsureAdmin(ctx, stack.Services.Identities, stack.Services.Provisioner, services.AdminSeed{
		Email:     cfg.Admin.Email,
		Password:  cfg.Admin.Password,
		FirstName: cfg.Admin.FirstName,
	})
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("seed admin created", logger.Email("email", cfg.Admin.Email))
	}

	if cfg.Maintenance.Enabled {
		opts := []maintenance.Option{
			maintenance.WithIntentRetention(cfg.Maintenance.IntentRetention),
			maintenance.WithAuditRetention(cfg.Maintenance.AuditRetention),
			maintenance.WithTokenSchedule(cfg.Maintenance.TokenSchedule),
			maintenance.WithIntentSchedule(cfg.Maintenance.IntentSchedule),
		}
		if stack.Redis == nil {
			opts = append(opts, maintenance.WithCounterPurger(dbStore))
		}
		stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Services.Intents, stack.Services.Audit, opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, stack.Services, cfg, stack.RateStore, readiness...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Publisher != nil {
		s.Publisher.Close()
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func buildPublisher(ctx context.Context, cfg *app.Config, log *zap.Logger) (events.Publisher, error) {
	if !cfg.Events.Kafka.Enabled {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Events.KafkaPublisherConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise kafka publisher: %w", err)
	}
	if cfg.Events.Kafka.CreateTopic {
		if err := publisher.EnsureTopic(ctx); err != nil {
			log.Warn("kafka topic not provisioned", zap.String("topic", cfg.Events.Kafka.Topic), zap.Error(err))
		}
	}
	log.Info("kafka publisher ready", zap.Strings("brokers", cfg.Events.Kafka.Brokers), zap.String("topic", cfg.Events.Kafka.Topic))
	return publisher, nil
}

func buildNotifier(cfg *app.Config, log *zap.Logger) (services.Notifier, error) {
	var mailer mail.Mailer
	if cfg.Email.SMTP.Enabled {
		smtp, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		mailer = smtp
	} else {
		log.Warn("smtp disabled; outbound mail is logged only")
		mailer = mail.NewLogMailer(logger.WithModule("mail"))
	}

	notifier, err := services.NewMailNotifier(mailer, services.MailNotifierConfig{
		From:    cfg.Email.SMTP.From,
		AppName: "Workpass",
		BaseURL: cfg.Server.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise notifier: %w", err)
	}
	return notifier, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:            strings.TrimSpace(cfg.Database.Path),
		DSN:             strings.TrimSpace(cfg.Database.DSN),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
