package matrix

import (
	"fmt"

	mx "github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Identity returns n x n identity matrix.
// It returns error if n is non-positive.
func Identity(n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid identity matrix size: %d", n)
	}

	return mx.NewDenseValIdentity(n, 1.0)
}

// Symmetrize returns symmetric matrix (m + m')/2.
// It panics if m is nil or if m is not square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrSquare)
	}

	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}

	return sym
}

// IsSymmetric returns true if m is square and m[i,j] equals m[j,i] within tolerance tol.
func IsSymmetric(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r != c {
		return false
	}

	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			if !scalar.EqualWithinAbsOrRel(m.At(i, j), m.At(j, i), tol, tol) {
				return false
			}
		}
	}

	return true
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = floats.Sum(mat.Col(nil, i, m))
	}

	return sum
}

// Format returns m formatter suitable for printing.
func Format(m mat.Matrix) fmt.Formatter {
	return mx.Format(m)
}
