package scenario

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/regimerisk/internal/correlation"
)

// ErrNumericalInstability Cholesky 분해가 보정 후에도 실패
var ErrNumericalInstability = errors.New("numerical instability")

// reconstructTolerance L·Lᵀ 와 원 행렬의 최대 허용 오차
const reconstructTolerance = 1e-8

// Mixing 상관행렬의 Cholesky 하삼각 인자
type Mixing struct {
	L        *mat.TriDense
	Repaired bool

	lower [][]float64
}

func newMixing(L *mat.TriDense, repaired bool) *Mixing {
	n, _ := L.Dims()
	lower := make([][]float64, n)
	for i := range lower {
		lower[i] = make([]float64, i+1)
		for j := 0; j <= i; j++ {
			lower[i][j] = L.At(i, j)
		}
	}
	return &Mixing{L: L, Repaired: repaired, lower: lower}
}

// NewMixing 상관행렬 분해. 실패 시 eigenvalue clipping 보정 후 1회 재시도
// 검증되지 않은 L 은 절대 반환하지 않음
func NewMixing(values [][]float64) (*Mixing, error) {
	if L, ok := factorize(values); ok {
		return newMixing(L, false), nil
	}

	repaired, err := correlation.Repair(values)
	if err != nil {
		return nil, fmt.Errorf("%w: repair failed: %v", ErrNumericalInstability, err)
	}
	L, ok := factorize(repaired)
	if !ok {
		return nil, fmt.Errorf("%w: cholesky failed after repair", ErrNumericalInstability)
	}
	return newMixing(L, true), nil
}

// factorize Cholesky + 재구성 검증
func factorize(values [][]float64) (*mat.TriDense, bool) {
	n := len(values)
	if n == 0 {
		return nil, false
	}
	data := make([]float64, 0, n*n)
	for _, row := range values {
		if len(row) != n {
			return nil, false
		}
		data = append(data, row...)
	}
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	sym := mat.NewSymDense(n, data)

	var chol mat.Cholesky
	if !chol.Factorize(sym) {
		return nil, false
	}
	L := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(L)

	var rebuilt mat.Dense
	rebuilt.Mul(L, L.T())
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			l := L.At(i, j)
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return nil, false
			}
			if math.Abs(rebuilt.At(i, j)-sym.At(i, j)) > reconstructTolerance {
				return nil, false
			}
		}
	}
	return L, true
}

// Apply out = L·z (out, z 길이 n)
func (m *Mixing) Apply(z, out []float64) {
	for i, row := range m.lower {
		s := 0.0
		for j, l := range row {
			s += l * z[j]
		}
		out[i] = s
	}
}
