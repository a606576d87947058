package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Client owns the ClickHouse pool behind the columnar price archive.
type Client struct {
	db       *sql.DB
	database string
}

// NewClient opens the pool and pings the server.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &ClientConfig{
		Port:            9000,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}

	db := clickhouse.OpenDB(buildOptions(*cfg))
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db, database: cfg.Database}, nil
}

// NewFromDB wraps a pool opened elsewhere.
func NewFromDB(db *sql.DB, database string) *Client {
	return &Client{db: db, database: database}
}

func (c *Client) Database() string { return c.database }

func (c *Client) DB() *sql.DB { return c.db }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func buildOptions(cfg ClientConfig) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Protocol:    clickhouse.Native,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	}
	if cfg.UseHTTP {
		opts.Protocol = clickhouse.HTTP
	}
	if cfg.MaxExecTime > 0 {
		opts.Settings = clickhouse.Settings{"max_execution_time": int(cfg.MaxExecTime.Seconds())}
	}
	if cfg.Compress {
		method := clickhouse.CompressionLZ4
		if cfg.UseHTTP {
			method = clickhouse.CompressionGZIP
		}
		opts.Compression = &clickhouse.Compression{Method: method}
	}
	return opts
}
