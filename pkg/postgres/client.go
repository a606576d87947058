package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabasePool is the subset of *pgxpool.Pool the repositories use.
// pgxmock.PgxPoolIface satisfies it as well.
type DatabasePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// ClientOption configures the pool.
type ClientOption func(*ClientConfig)

type ClientConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	SSLMode     string
	MaxConns    int32
	PingTimeout time.Duration
}

func WithHost(host string) ClientOption {
	return func(c *ClientConfig) { c.Host = host }
}

func WithPort(port int) ClientOption {
	return func(c *ClientConfig) { c.Port = port }
}

func WithDatabase(db string) ClientOption {
	return func(c *ClientConfig) { c.Database = db }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

func WithSSLMode(mode string) ClientOption {
	return func(c *ClientConfig) { c.SSLMode = mode }
}

func WithMaxConns(n int32) ClientOption {
	return func(c *ClientConfig) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// NewPool opens a pgx pool and pings it.
func NewPool(ctx context.Context, opts ...ClientOption) (*pgxpool.Pool, error) {
	cfg := &ClientConfig{
		Host:        "localhost",
		Port:        5432,
		SSLMode:     "disable",
		MaxConns:    10,
		PingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pcfg, err := pgxpool.ParseConfig(BuildDSN(*cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// BuildDSN renders a postgres:// URL with escaped credentials.
func BuildDSN(cfg ClientConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}
