package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/wonny/regimerisk/internal/correlation"
)

const badgerPrefix = "corr:"

// BadgerStore 임베디드 KV 저장소. 레짐당 키 하나, 트랜잭션 단위 교체
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore path 에 DB 오픈
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open correlation store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Put 레짐 행렬 저장
func (s *BadgerStore) Put(_ context.Context, m *correlation.Matrix) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s matrix: %w", m.Regime, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+m.Regime), data)
	})
}

// Get 레짐 행렬 조회
func (s *BadgerStore) Get(_ context.Context, regime string) (*correlation.Matrix, error) {
	var m correlation.Matrix
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + regime))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s matrix: %w", regime, err)
	}
	return &m, nil
}

// List 전체 행렬
func (s *BadgerStore) List(_ context.Context) ([]*correlation.Matrix, error) {
	var out []*correlation.Matrix
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var m correlation.Matrix
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &m)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortMatrices(out)
	return out, nil
}

// Close DB 닫기
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
