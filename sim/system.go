package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// System defines a linear model of a plant using
// traditional matrices of modern control theory.
//
// It contains the per-unit-time System (A), input (B)
// and Observation/Output (C) matrices.
type System struct {
	// System/State matrix A
	A *mat.Dense
	// Control/Input Matrix B
	B *mat.Dense
	// Observation/Output Matrix C
	C *mat.Dense
}

// NewSystem creates a linear model advanced by a variable time step dt:
//
//	x[n+1] = (A*dt)*x[n] + B*u[n] + w[n]
//	y[n] = C*x[n] + v[n]
//
// B is optional. It returns error if A is not square or if B or C dimensions do not match A.
func NewSystem(A, B, C mat.Matrix) (*System, error) {
	if A == nil || C == nil {
		return nil, fmt.Errorf("system and output matrices must be defined for a model")
	}

	nx, cols := A.Dims()
	if nx != cols {
		return nil, fmt.Errorf("invalid system matrix dimensions: [%d x %d]", nx, cols)
	}

	if rows, cols := C.Dims(); cols != nx {
		return nil, fmt.Errorf("invalid output matrix dimensions: [%d x %d]", rows, cols)
	}

	sys := &System{
		A: mat.DenseCopyOf(A),
		C: mat.DenseCopyOf(C),
	}

	if B != nil {
		if rows, cols := B.Dims(); rows != nx {
			return nil, fmt.Errorf("invalid input matrix dimensions: [%d x %d]", rows, cols)
		}
		sys.B = mat.DenseCopyOf(B)
	}

	return sys, nil
}

// SystemDims returns internal state length (nx), input vector length (nu)
// and external/observable/output state length (ny).
func (s *System) SystemDims() (nx, nu, ny int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	ny, _ = s.C.Dims()

	return nx, nu, ny
}

// Propagate returns the next internal state x of the system given an input vector u
// and process noise w after time step dt.
// u and w are ignored if they are nil; w is also ignored if its length differs from the state length.
func (s *System) Propagate(x, u, w mat.Vector, dt float64) (mat.Vector, error) {
	nx, nu, _ := s.SystemDims()
	if dt <= 0 {
		return nil, fmt.Errorf("invalid time step: %v", dt)
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	if u != nil && s.B != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	adt := &mat.Dense{}
	adt.Scale(dt, s.A)

	out := &mat.VecDense{}
	out.MulVec(adt, x)

	if u != nil && s.B != nil {
		outU := &mat.VecDense{}
		outU.MulVec(s.B, u)

		out.AddVec(out, outU)
	}

	if w != nil && w.Len() == nx {
		out.AddVec(out, w)
	}

	return out, nil
}

// Observe returns external/observable state given internal state x.
// v is added to the output as a noise vector unless it is nil or its length differs from the output length.
func (s *System) Observe(x, v mat.Vector) (mat.Vector, error) {
	nx, _, ny := s.SystemDims()
	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := &mat.VecDense{}
	out.MulVec(s.C, x)

	if v != nil && v.Len() == ny {
		out.AddVec(out, v)
	}

	return out, nil
}
