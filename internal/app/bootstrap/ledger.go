package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/slotwatch/internal/config"
	"github.com/wolfman30/slotwatch/internal/reminders"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// BuildLedger returns the persister selected by LEDGER_BACKEND and a cleanup
// func that releases its connections.
func BuildLedger(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (reminders.Persister, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	noop := func() {}
	loader := &awsLoader{cfg: cfg}

	switch cfg.LedgerBackend {
	case "", "file":
		logger.Info("reminder ledger on disk", "path", cfg.LedgerPath)
		return reminders.NewFileStore(cfg.LedgerPath), noop, nil

	case "redis":
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, nil, fmt.Errorf("bootstrap: redis ledger unavailable at %s", cfg.RedisAddr)
		}
		logger.Info("reminder ledger in redis", "addr", cfg.RedisAddr, "key", cfg.RedisLedgerKey)
		return reminders.NewRedisStore(client, cfg.RedisLedgerKey), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("reminder ledger in postgres")
		return reminders.NewPostgresStore(pool), pool.Close, nil

	case "s3":
		awsCfg, err := loader.get(ctx)
		if err != nil {
			return nil, nil, err
		}
		pathStyle := strings.TrimSpace(cfg.AWSEndpointOverride) != ""
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		})
		logger.Info("reminder ledger in s3", "bucket", cfg.LedgerBucket, "key", cfg.LedgerObjectKey)
		return reminders.NewS3Store(client, cfg.LedgerBucket, cfg.LedgerObjectKey), noop, nil

	case "dynamodb":
		awsCfg, err := loader.get(ctx)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("reminder ledger in dynamodb", "table", cfg.LedgerTable, "item", cfg.LedgerItemID)
		return reminders.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.LedgerTable, cfg.LedgerItemID), noop, nil
	}
	return nil, nil, fmt.Errorf("bootstrap: unknown ledger backend %q", cfg.LedgerBackend)
}
