package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/regimerisk/internal/correlation"
	"github.com/wonny/regimerisk/pkg/database"
)

// PostgresStore risk.correlation_matrices 저장소. upsert 로 레짐 행 교체
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore 생성
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Put 레짐 행렬 upsert
func (s *PostgresStore) Put(ctx context.Context, m *correlation.Matrix) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s matrix: %w", m.Regime, err)
	}

	query := `
		INSERT INTO risk.correlation_matrices (regime, payload, valid, sample_size, trained_through, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (regime) DO UPDATE SET
			payload = EXCLUDED.payload,
			valid = EXCLUDED.valid,
			sample_size = EXCLUDED.sample_size,
			trained_through = EXCLUDED.trained_through,
			updated_at = NOW()
	`

	var through any
	if !m.TrainedThrough.IsZero() {
		through = m.TrainedThrough
	}

	if _, err := s.db.Exec(ctx, query, m.Regime, payload, m.Valid, m.SampleSize, through); err != nil {
		return fmt.Errorf("upsert %s matrix: %w", m.Regime, err)
	}
	return nil
}

// Get 레짐 행렬 조회
func (s *PostgresStore) Get(ctx context.Context, regime string) (*correlation.Matrix, error) {
	query := `SELECT payload FROM risk.correlation_matrices WHERE regime = $1`

	var payload []byte
	if err := s.db.QueryRow(ctx, query, regime).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s matrix: %w", regime, err)
	}

	var m correlation.Matrix
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode %s matrix: %w", regime, err)
	}
	return &m, nil
}

// List 전체 행렬
func (s *PostgresStore) List(ctx context.Context) ([]*correlation.Matrix, error) {
	rows, err := s.db.Query(ctx, `SELECT payload FROM risk.correlation_matrices ORDER BY regime`)
	if err != nil {
		return nil, fmt.Errorf("list matrices: %w", err)
	}
	defer rows.Close()

	var out []*correlation.Matrix
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan matrix: %w", err)
		}
		var m correlation.Matrix
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode matrix: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortMatrices(out)
	return out, nil
}

// Close 풀은 호출자가 소유
func (s *PostgresStore) Close() error { return nil }
