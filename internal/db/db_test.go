package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_MissingDSN(t *testing.T) {
	pool, err := Connect(context.Background(), PoolConfig{})
	assert.Nil(t, pool)
	assert.ErrorIs(t, err, ErrMissingDSN)
}

func TestPoolConfig(t *testing.T) {
	t.Run("defaults max conns", func(t *testing.T) {
		cfg, err := poolConfig(PoolConfig{URL: "postgres://u:p@db.example:5432/act?sslmode=disable"})
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxConns, cfg.MaxConns)
		assert.Equal(t, "db.example", cfg.ConnConfig.Host)
		assert.Equal(t, "act", cfg.ConnConfig.Database)
		assert.NotNil(t, cfg.AfterConnect)
	})

	t.Run("honours configured size", func(t *testing.T) {
		cfg, err := poolConfig(PoolConfig{URL: "postgres://u:p@db.example:5432/act?pool_min_conns=8", MaxConns: 2})
		require.NoError(t, err)
		assert.Equal(t, int32(2), cfg.MaxConns)
		assert.Equal(t, int32(2), cfg.MinConns)
	})

	t.Run("rejects unparsable url", func(t *testing.T) {
		_, err := poolConfig(PoolConfig{URL: "postgres://u:p@db.example:notaport/act"})
		assert.ErrorContains(t, err, "invalid database url")
	})
}
