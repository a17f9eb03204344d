package correlation

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/regimerisk/internal/factors"
)

// =============================================================================
// Errors & Reasons
// =============================================================================

// ErrDataInsufficient 학습 불가 (팩터 < 2, 행 0, 사용 가능한 변화량 없음)
// factors.ErrDataInsufficient 와 동일한 값이라 어느 쪽으로 errors.Is 해도 매칭됨
var ErrDataInsufficient = factors.ErrDataInsufficient

// AllRegimes 전체 레짐 집계 행렬 키
const AllRegimes = "ALL"

// Reason 행렬이 사용 불가한 이유 / 폴백 사유
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonNotPSD           Reason = "not_positive_semidefinite"
	ReasonDegenerateFactor Reason = "degenerate_factor"
)

// Source 행렬 출처
const (
	SourceTrained   = "trained"
	SourceHeuristic = "heuristic"
)

// PSDTolerance 최소 고유값 허용 오차 (eigenvalue >= -PSDTolerance)
const PSDTolerance = 1e-8

// repairFloor 고유값 클리핑 하한
const repairFloor = 1e-8

// =============================================================================
// Matrix
// =============================================================================

// Matrix 레짐별 상관행렬
// ⭐ SSOT: Valid=false 인 행렬은 시뮬레이션에 직접 사용 금지
type Matrix struct {
	Regime         string      `json:"regime"`
	Factors        []string    `json:"factors"`
	Values         [][]float64 `json:"values"`
	SampleSize     int         `json:"sample_size"`
	TrainedThrough time.Time   `json:"trained_through_date"`
	Valid          bool        `json:"valid"`
	InvalidReason  Reason      `json:"invalid_reason,omitempty"`
	Repaired       bool        `json:"repaired,omitempty"`
	Source         string      `json:"source"`
}

// Identity 단위행렬 생성
func Identity(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = 1
	}
	return out
}

// Index 팩터 위치 (없으면 -1)
func (m *Matrix) Index(name string) int {
	for i, f := range m.Factors {
		if f == name {
			return i
		}
	}
	return -1
}

// At 두 팩터 간 상관계수
func (m *Matrix) At(a, b string) (float64, bool) {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.Values[i][j], true
}

// HasFactors 모든 이름이 행렬에 있는지
func (m *Matrix) HasFactors(names ...string) bool {
	for _, n := range names {
		if m.Index(n) < 0 {
			return false
		}
	}
	return true
}

// Clone deep copy
func (m *Matrix) Clone() *Matrix {
	c := *m
	c.Factors = append([]string(nil), m.Factors...)
	c.Values = make([][]float64, len(m.Values))
	for i, row := range m.Values {
		c.Values[i] = append([]float64(nil), row...)
	}
	return &c
}

// CheckShape 대칭 + 단위 대각 + 유한값 확인
func (m *Matrix) CheckShape() error {
	n := len(m.Factors)
	if len(m.Values) != n {
		return fmt.Errorf("matrix %s: %d rows for %d factors", m.Regime, len(m.Values), n)
	}
	for i := 0; i < n; i++ {
		if len(m.Values[i]) != n {
			return fmt.Errorf("matrix %s: row %d has %d columns", m.Regime, i, len(m.Values[i]))
		}
		if math.Abs(m.Values[i][i]-1) > 1e-9 {
			return fmt.Errorf("matrix %s: diagonal %d = %g", m.Regime, i, m.Values[i][i])
		}
		for j := 0; j < i; j++ {
			v := m.Values[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1+1e-9 {
				return fmt.Errorf("matrix %s: entry (%d,%d) = %g", m.Regime, i, j, v)
			}
			if math.Abs(v-m.Values[j][i]) > 1e-12 {
				return fmt.Errorf("matrix %s: asymmetric at (%d,%d)", m.Regime, i, j)
			}
		}
	}
	return nil
}

// Usable 시뮬레이션 사용 가능 여부
func (m *Matrix) Usable() bool {
	return m != nil && m.Valid && m.CheckShape() == nil && IsPSD(m.Values)
}

// =============================================================================
// PSD check & repair
// =============================================================================

// square 정방 + 유한값 여부
func square(values [][]float64) bool {
	for _, row := range values {
		if len(row) != len(values) {
			return false
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return len(values) > 0
}

func toSym(values [][]float64) *mat.SymDense {
	n := len(values)
	data := make([]float64, 0, n*n)
	for _, row := range values {
		data = append(data, row...)
	}
	return mat.NewSymDense(n, data)
}

// MinEigenvalue 최소 고유값 (분해 실패 시 NaN)
func MinEigenvalue(values [][]float64) float64 {
	if !square(values) {
		return math.NaN()
	}
	var eig mat.EigenSym
	if !eig.Factorize(toSym(values), false) {
		return math.NaN()
	}
	vals := eig.Values(nil)
	minVal := vals[0]
	for _, v := range vals[1:] {
		if v < minVal {
			minVal = v
		}
	}
	return minVal
}

// IsPSD 양의 준정부호 여부 (모든 고유값 >= -PSDTolerance)
func IsPSD(values [][]float64) bool {
	minVal := MinEigenvalue(values)
	return !math.IsNaN(minVal) && minVal >= -PSDTolerance
}

// Repair 가장 가까운 유효 상관행렬로 보정 (eigenvalue clipping)
// 음의 고유값을 repairFloor 로 올린 뒤 대각이 1 이 되도록 재스케일
func Repair(values [][]float64) ([][]float64, error) {
	n := len(values)
	if !square(values) {
		return nil, fmt.Errorf("matrix must be square with finite entries")
	}
	var eig mat.EigenSym
	if !eig.Factorize(toSym(values), true) {
		return nil, fmt.Errorf("eigendecomposition failed")
	}

	lambda := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for i, l := range lambda {
		if l < repairFloor {
			lambda[i] = repairFloor
		}
	}

	// A = V diag(λ) Vᵀ
	var scaled mat.Dense
	scaled.Apply(func(_, j int, v float64) float64 { return v * lambda[j] }, &vecs)
	var rebuilt mat.Dense
	rebuilt.Mul(&scaled, vecs.T())

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		di := math.Sqrt(rebuilt.At(i, i))
		for j := 0; j <= i; j++ {
			dj := math.Sqrt(rebuilt.At(j, j))
			if di == 0 || dj == 0 {
				return nil, fmt.Errorf("repaired matrix has zero variance at %d", i)
			}
			v := (rebuilt.At(i, j) + rebuilt.At(j, i)) / 2 / (di * dj)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("repaired matrix has non-finite entry at (%d,%d)", i, j)
			}
			v = math.Max(-1, math.Min(1, v))
			out[i][j] = v
			out[j][i] = v
		}
		out[i][i] = 1
	}

	return out, nil
}
