// Package app builds the service graph shared by the server and admin binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevin07696/royalty-service/internal/adapters/lock"
	"github.com/kevin07696/royalty-service/internal/adapters/postgres"
	"github.com/kevin07696/royalty-service/internal/adapters/secrets"
	"github.com/kevin07696/royalty-service/internal/config"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/aggregation"
	"github.com/kevin07696/royalty-service/internal/services/backfill"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/internal/services/payout"
	"github.com/kevin07696/royalty-service/internal/services/reconciliation"
	"github.com/kevin07696/royalty-service/internal/services/statement"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App holds the connected services
type App struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Store      ports.Store
	Users      *postgres.UserRepository
	Statements *statement.Service
	Payouts    *payout.Service
	Reconciler *reconciliation.Reconciler
	Jobs       *backfill.Service
	logger     *zap.Logger
}

// NewLogger builds the process logger. Production output is JSON with
// ISO8601 timestamps.
func NewLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapCfg.Build()
}

// New connects to the database and the optional Redis lock backend and wires
// every service. Close releases the connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	password, err := databasePassword(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	dbc := cfg.Database
	dbc.Password = password

	pgCfg := postgres.DefaultPostgreSQLConfig(dbc.ConnectionString())
	pgCfg.MaxConns = dbc.MaxConns
	pgCfg.MinConns = dbc.MinConns

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := postgres.Connect(connectCtx, pgCfg, logger)
	if err != nil {
		return nil, err
	}
	pg := postgres.NewStore(pool, pgCfg, logger)
	store := pg.Ports()

	a := &App{
		Pool:   pool,
		Store:  store,
		Users:  pg.Users,
		logger: logger,
	}

	var locker ports.JobLocker
	if cfg.Redis.Address != "" {
		client, err := lock.Connect(connectCtx, lock.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		locker = lock.NewRedisLocker(client, logger)
	} else {
		logger.Warn("REDIS_ADDR not set, job locks only cover this process")
		locker = lock.NewLocalLocker()
	}

	rc := cfg.Reconciliation
	commission, err := aggregation.NewTierCommission(rc.DefaultCommission, rc.RoleCommission)
	if err != nil {
		a.Close()
		return nil, err
	}
	matching := matcher.Config{
		Threshold: rc.MatchThreshold,
		TiePolicy: matcher.ParseTiePolicy(rc.TiePolicy),
	}

	a.Statements = statement.NewService(store, commission, statement.Config{
		Tolerance: rc.Tolerance,
		Matcher:   matching,
	}, logger)
	a.Payouts = payout.NewService(store, logger)
	a.Reconciler = reconciliation.NewReconciler(store, rc.Tolerance, logger)
	a.Jobs = backfill.NewService(store, commission, a.Reconciler, locker, backfill.Config{
		Matcher: matching,
		LockTTL: rc.JobLockTTL,
	}, logger)

	logger.Info("Services initialized",
		zap.String("tolerance", rc.Tolerance.String()),
		zap.String("match_threshold", rc.MatchThreshold.String()),
		zap.String("tie_policy", string(matching.TiePolicy)),
		zap.String("default_commission", rc.DefaultCommission.String()),
	)
	return a, nil
}

// Close releases the database pool and the Redis client
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func databasePassword(ctx context.Context, cfg *config.Config, logger *zap.Logger) (string, error) {
	if cfg.Database.PasswordSecretPath == "" {
		return cfg.Database.Password, nil
	}
	sc := cfg.Secrets
	sm, err := secrets.New(ctx, secrets.Config{
		Backend:         sc.Backend,
		CacheTTL:        sc.CacheTTL,
		LocalPath:       sc.BasePath,
		AWSRegion:       sc.AWSRegion,
		AWSProfile:      sc.AWSProfile,
		AWSEndpoint:     sc.AWSEndpoint,
		VaultAddress:    sc.VaultAddress,
		VaultAuthMethod: sc.VaultAuth,
		VaultToken:      sc.VaultToken,
		VaultRoleID:     sc.VaultRoleID,
		VaultSecretID:   sc.VaultSecretID,
		VaultK8sRole:    sc.VaultRole,
		VaultMountPath:  sc.VaultMountPath,
		VaultNamespace:  sc.VaultNamespace,
	}, logger)
	if err != nil {
		return "", fmt.Errorf("init secret manager: %w", err)
	}
	password, err := secrets.Resolve(ctx, sm, cfg.Database.PasswordSecretPath, cfg.Database.PasswordVersion, cfg.Database.Password)
	if err != nil {
		return "", err
	}
	logger.Info("Database password resolved from secret manager",
		zap.String("backend", sc.Backend),
		zap.String("path", cfg.Database.PasswordSecretPath),
		zap.String("version", cfg.Database.PasswordVersion))
	return password, nil
}
