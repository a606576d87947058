package clickhouse

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds connection settings for the columnar price archive.
type ClientConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	MaxExecTime     time.Duration
	UseHTTP         bool
	// Compress enables LZ4 on the native protocol; daily price batches compress well.
	Compress bool
}

func WithAddr(host string, port int) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
	}
}

func WithDatabase(database string) ClientOption {
	return func(c *ClientConfig) { c.Database = database }
}

func WithCredentials(user, password string) ClientOption {
	return func(c *ClientConfig) {
		c.User = user
		c.Password = password
	}
}

func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

func WithTimeouts(dial, read time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if dial > 0 {
			c.DialTimeout = dial
		}
		if read > 0 {
			c.ReadTimeout = read
		}
	}
}

// WithHTTP switches from the native protocol (port 9000) to HTTP (port 8123).
func WithHTTP(useHTTP bool) ClientOption {
	return func(c *ClientConfig) { c.UseHTTP = useHTTP }
}

func WithCompression(enabled bool) ClientOption {
	return func(c *ClientConfig) { c.Compress = enabled }
}

// WithMaxExecutionTime sets the server-side max_execution_time for every query.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}
