package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/sacola/internal/storage/memory"
	"github.com/xenking/sacola/internal/storage/redis"
	"github.com/xenking/sacola/pkg/health"
)

func TestOpenStorage_Memory(t *testing.T) {
	s, closeFn, err := openStorage(context.Background(), StorageConfig{Backend: BackendMemory}, nil, health.New(zap.NewNop()))
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &memory.Store{}, s)
}

func TestOpenStorage_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, closeFn, err := openStorage(ctx, StorageConfig{
		Backend:  BackendRedis,
		RedisURL: "redis://" + mr.Addr() + "/0",
		TTL:      time.Hour,
	}, nil, health.New(zap.NewNop()))
	require.NoError(t, err)
	defer closeFn()

	require.IsType(t, &redis.Store{}, s)
	require.NoError(t, s.Set(ctx, "sacola:cart:abc", "{}"))
	assert.Equal(t, time.Hour, mr.TTL("sacola:cart:abc"))
}

func TestOpenStorage_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  StorageConfig
	}{
		{name: "postgres without pool", cfg: StorageConfig{Backend: BackendPostgres}},
		{name: "bad redis url", cfg: StorageConfig{Backend: BackendRedis, RedisURL: "http://nope"}},
		{name: "redis unreachable", cfg: StorageConfig{Backend: BackendRedis, RedisURL: "redis://127.0.0.1:1/0"}},
		{name: "unknown", cfg: StorageConfig{Backend: "etcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := openStorage(context.Background(), tt.cfg, nil, health.New(zap.NewNop()))
			assert.Error(t, err)
		})
	}
}
