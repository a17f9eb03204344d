package factors

import (
	"context"
	"time"
)

// Source 팩터 시계열 공급자 (학습/재학습 입력)
type Source interface {
	Load(ctx context.Context) (*Series, error)
}

// CSVSource CSV 파일 공급자
type CSVSource struct {
	Path string
}

// Load CSV 파일 읽기
func (c CSVSource) Load(_ context.Context) (*Series, error) {
	return LoadCSV(c.Path)
}

// RepositorySource Postgres 공급자. Names 가 비면 기본 카탈로그
type RepositorySource struct {
	Repo  *Repository
	Names []string
	Start time.Time
}

// Load macro.factor_observations 조회
func (r RepositorySource) Load(ctx context.Context) (*Series, error) {
	names := r.Names
	if len(names) == 0 {
		names = Names(DefaultCatalog())
	}
	return r.Repo.Load(ctx, names, r.Start)
}
