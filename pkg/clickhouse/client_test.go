package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptionsNative(t *testing.T) {
	opts := buildOptions(ClientConfig{
		Host: "ch", Port: 9000, Database: "archive", User: "default",
		DialTimeout: 5 * time.Second, ReadTimeout: 10 * time.Second, MaxExecTime: 30 * time.Second,
		Compress: true,
	})

	assert.Equal(t, []string{"ch:9000"}, opts.Addr)
	assert.Equal(t, clickhouse.Native, opts.Protocol)
	assert.Equal(t, "archive", opts.Auth.Database)
	assert.Equal(t, "default", opts.Auth.Username)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 30, opts.Settings["max_execution_time"])
	require.NotNil(t, opts.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, opts.Compression.Method)
}

func TestBuildOptionsHTTP(t *testing.T) {
	opts := buildOptions(ClientConfig{Host: "ch", Port: 8123, Database: "db", User: "u", Password: "p", UseHTTP: true})

	assert.Equal(t, clickhouse.HTTP, opts.Protocol)
	assert.Equal(t, "p", opts.Auth.Password)
	assert.Nil(t, opts.Settings)
	assert.Nil(t, opts.Compression)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
