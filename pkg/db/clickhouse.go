package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/kampala-labs/momoflow/pkg/retry"
	"github.com/kampala-labs/momoflow/pkg/utils"
)

// Client wraps a ClickHouse connection with its logger.
type Client struct {
	Logger *zap.Logger
	Db     driver.Conn
}

// New connects to ClickHouse using CLICKHOUSE_ADDR and retries with backoff
// until the server answers a ping. The connection stays on the default
// database; callers qualify every query with their target database name,
// which InitializeDB creates on demand.
func New(ctx context.Context, logger *zap.Logger) (Client, error) {
	client := Client{Logger: logger}

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?dial_timeout=10s")
	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return Client{}, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	options.MaxOpenConns = utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 10)
	options.MaxIdleConns = utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 5)
	options.ConnMaxLifetime = 1 * time.Hour
	options.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	err = retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "clickhouse_connection", func() error {
		conn, openErr := clickhouse.Open(options)
		if openErr != nil {
			return fmt.Errorf("open clickhouse connection: %w", openErr)
		}
		if pingErr := conn.Ping(connCtx); pingErr != nil {
			return fmt.Errorf("ping clickhouse: %w", pingErr)
		}
		client.Db = conn
		return nil
	})
	if err != nil {
		return Client{}, err
	}

	logger.Info("ClickHouse connection ready",
		zap.Strings("addr", options.Addr),
		zap.Int("max_open_conns", options.MaxOpenConns))
	return client, nil
}
