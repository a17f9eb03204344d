package store

import (
	"context"
	"fmt"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/pkg/redis"
)

// RedisStore 여러 프로세스가 공유하는 저장소. SET 한 번으로 레짐 키 교체
type RedisStore struct {
	cache *redis.Cache
}

// NewRedisStore 생성
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{cache: redis.NewCache(client, prefix)}
}

// Put 레짐 행렬 저장 (TTL 없음)
func (s *RedisStore) Put(ctx context.Context, m *correlation.Matrix) error {
	if err := s.cache.Set(ctx, redis.MatrixKey(m.Regime), m, 0); err != nil {
		return fmt.Errorf("put %s matrix: %w", m.Regime, err)
	}
	return nil
}

// Get 레짐 행렬 조회
func (s *RedisStore) Get(ctx context.Context, regime string) (*correlation.Matrix, error) {
	var m correlation.Matrix
	found, err := s.cache.Get(ctx, redis.MatrixKey(regime), &m)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &m, nil
}

// List 전체 행렬
func (s *RedisStore) List(ctx context.Context) ([]*correlation.Matrix, error) {
	keys, err := s.cache.Keys(ctx, redis.MatrixKey(""))
	if err != nil {
		return nil, err
	}

	out := make([]*correlation.Matrix, 0, len(keys))
	for _, k := range keys {
		var m correlation.Matrix
		found, err := s.cache.Get(ctx, k, &m)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, &m)
		}
	}
	sortMatrices(out)
	return out, nil
}

// Close 클라이언트는 호출자가 소유
func (s *RedisStore) Close() error { return nil }
