package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/walletd/marketsync/internal/models"
)

const redisKeyPrefix = "marketsync:cache:"

// RedisStore keeps cache records in redis for deployments where the
// wallet backend already runs one. Records are stored without a redis
// TTL: staleness is the synchronizers' concern, and the cache contract
// is overwrite-in-place with no eviction.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(url, password string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (rs *RedisStore) Load(ctx context.Context, kind models.CacheKind) (*models.CacheRecord, error) {
	data, err := rs.client.Get(ctx, redisKeyPrefix+string(kind)).Bytes()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s record: %w", kind, err)
	}

	var record models.CacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, ErrCacheMiss
	}
	if record.Version != models.CacheSchemaVersion {
		return nil, ErrCacheMiss
	}

	return &record, nil
}

func (rs *RedisStore) Save(ctx context.Context, kind models.CacheKind, payload any) error {
	record, err := newRecord(payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", kind, err)
	}

	return rs.client.Set(ctx, redisKeyPrefix+string(kind), data, 0).Err()
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
