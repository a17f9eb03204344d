package store

import (
	"fmt"

	"github.com/wonny/regimerisk/pkg/config"
	"github.com/wonny/regimerisk/pkg/database"
	"github.com/wonny/regimerisk/pkg/redis"
)

// Open 설정된 백엔드로 Store 생성
// db / rc 는 해당 백엔드를 쓸 때만 필요
func Open(cfg *config.Config, db *database.DB, rc *redis.Client) (Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendBadger:
		return NewBadgerStore(cfg.Store.BadgerPath)
	case config.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return NewPostgresStore(db.Pool), nil
	case config.BackendRedis:
		if rc == nil || !rc.Enabled() {
			return nil, fmt.Errorf("redis store requires an enabled redis client")
		}
		return NewRedisStore(rc, cfg.Store.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
