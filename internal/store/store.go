package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wonny/regimerisk/internal/correlation"
)

// =============================================================================
// Store
// =============================================================================

var (
	// ErrNotFound 해당 레짐 행렬 없음
	ErrNotFound = errors.New("correlation matrix not found")
	// ErrFallbackExhausted 기본 행렬까지 사용할 수 없음 (설정 오류)
	ErrFallbackExhausted = errors.New("correlation fallback exhausted")
)

// Store 레짐 키 상관행렬 저장소
// ⭐ SSOT: 행렬 소유자는 Store. Get/List 는 사본을 반환
type Store interface {
	Put(ctx context.Context, m *correlation.Matrix) error
	Get(ctx context.Context, regime string) (*correlation.Matrix, error)
	List(ctx context.Context) ([]*correlation.Matrix, error)
	Close() error
}

// sortMatrices ALL 먼저, 나머지는 레짐 이름순
func sortMatrices(ms []*correlation.Matrix) {
	sort.Slice(ms, func(i, j int) bool {
		a, b := ms[i].Regime, ms[j].Regime
		if (a == correlation.AllRegimes) != (b == correlation.AllRegimes) {
			return a == correlation.AllRegimes
		}
		return a < b
	})
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore copy-on-write 인메모리 저장소
// 읽기는 락 없이 스냅샷 포인터를 읽고, 쓰기는 새 맵을 만들어 포인터를 교체
type MemoryStore struct {
	mu   sync.Mutex // writers only
	snap atomic.Pointer[map[string]*correlation.Matrix]
}

// NewMemoryStore 생성
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	empty := map[string]*correlation.Matrix{}
	s.snap.Store(&empty)
	return s
}

// Put 레짐 행렬 교체
func (s *MemoryStore) Put(_ context.Context, m *correlation.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.snap.Load()
	next := make(map[string]*correlation.Matrix, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[m.Regime] = m.Clone()
	s.snap.Store(&next)
	return nil
}

// Get 레짐 행렬 조회
func (s *MemoryStore) Get(_ context.Context, regime string) (*correlation.Matrix, error) {
	m, ok := (*s.snap.Load())[regime]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

// List 전체 행렬
func (s *MemoryStore) List(_ context.Context) ([]*correlation.Matrix, error) {
	snap := *s.snap.Load()
	out := make([]*correlation.Matrix, 0, len(snap))
	for _, m := range snap {
		out = append(out, m.Clone())
	}
	sortMatrices(out)
	return out, nil
}

// Close no-op
func (s *MemoryStore) Close() error { return nil }
