package kf

import (
	"errors"
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-kalman"
	"github.com/milosgajdos/go-kalman/estimate"
	"github.com/milosgajdos/go-kalman/matrix"
	"gonum.org/v1/gonum/mat"
)

// ErrTransition is returned when the filter can not transition to the next state:
// either the time step is not positive or the innovation covariance is singular.
// Filter state is never modified when ErrTransition is returned.
var ErrTransition = errors.New("invalid state transition")

// Config is KF configuration
type Config struct {
	// Transition is per-unit-time state transition matrix [nx x nx]
	Transition mat.Matrix
	// Measurement maps state space to measurement space [ny x nx]
	Measurement mat.Matrix
	// ProcessNoise is process noise covariance [nx x nx]
	ProcessNoise mat.Symmetric
	// Control maps control input to state space [nx x nu].
	// If nil control input has no effect on the filter state.
	Control mat.Matrix
	// Init is initial condition of the filter.
	// If nil the filter starts with zero state and identity covariance.
	Init filter.InitCond
}

// KF is Kalman Filter
type KF struct {
	// f is per-unit-time transition matrix
	f *mat.Dense
	// h is measurement matrix
	h *mat.Dense
	// q is process noise covariance
	q *mat.SymDense
	// b is control matrix; nil means zero mapping
	b *mat.Dense
	// eye is [nx x nx] identity matrix
	eye *mat.Dense
	// x is committed state
	x *mat.VecDense
	// p is committed state covariance
	p *mat.SymDense
}

// New creates new KF with zero initial state, identity covariance and no control input.
// It accepts the following parameters:
//   - f: per-unit-time state transition matrix
//   - h: measurement matrix
//   - q: process noise covariance
//
// It returns error if either of the matrices is nil or their dimensions do not match.
func New(f, h mat.Matrix, q mat.Symmetric) (*KF, error) {
	return NewWithConfig(&Config{
		Transition:   f,
		Measurement:  h,
		ProcessNoise: q,
	})
}

// NewWithConfig creates new KF from config c and returns it.
// It returns error if either of the following conditions is met:
//   - transition, measurement or process noise matrix is missing
//   - transition matrix is not square
//   - measurement matrix column count differs from the state dimension
//   - process noise covariance does not match the state dimension
//   - control matrix or initial condition do not match the state dimension
func NewWithConfig(c *Config) (*KF, error) {
	if c == nil {
		return nil, fmt.Errorf("invalid config: %v", c)
	}

	if c.Transition == nil || c.Measurement == nil || c.ProcessNoise == nil {
		return nil, fmt.Errorf("transition, measurement and process noise matrices must be defined")
	}

	nx, cols := c.Transition.Dims()
	if nx <= 0 || nx != cols {
		return nil, fmt.Errorf("invalid transition matrix dimensions: [%d x %d]", nx, cols)
	}

	ny, cols := c.Measurement.Dims()
	if ny <= 0 || cols != nx {
		return nil, fmt.Errorf("invalid measurement matrix dimensions: [%d x %d]", ny, cols)
	}

	if n := c.ProcessNoise.SymmetricDim(); n != nx {
		return nil, fmt.Errorf("invalid process noise dimensions: [%d x %d]", n, n)
	}

	eye, err := matrix.Identity(nx)
	if err != nil {
		return nil, err
	}

	q := mat.NewSymDense(nx, nil)
	q.CopySym(c.ProcessNoise)

	// default initial condition
	p := mat.NewSymDense(nx, nil)
	for i := 0; i < nx; i++ {
		p.SetSym(i, i, 1.0)
	}

	k := &KF{
		f:   mat.DenseCopyOf(c.Transition),
		h:   mat.DenseCopyOf(c.Measurement),
		q:   q,
		eye: eye,
		x:   mat.NewVecDense(nx, nil),
		p:   p,
	}

	if c.Control != nil {
		if err := k.setControl(c.Control); err != nil {
			return nil, err
		}
	}

	if c.Init != nil {
		if err := k.setState(c.Init.State(), c.Init.Cov()); err != nil {
			return nil, err
		}
	}

	return k, nil
}

// WithState returns a copy of KF whose state is set to x and covariance to p.
// It is meant to be used before the first filter step.
// It returns error if x or p are nil or their dimensions do not match the filter state.
func (k *KF) WithState(x mat.Vector, p mat.Symmetric) (*KF, error) {
	kf := k.clone()
	if err := kf.setState(x, p); err != nil {
		return nil, err
	}

	return kf, nil
}

// WithControlModel returns a copy of KF which uses control matrix b.
// It is meant to be used before the first filter step.
// It returns error if b is nil or its row count differs from the state dimension.
func (k *KF) WithControlModel(b mat.Matrix) (*KF, error) {
	kf := k.clone()
	if err := kf.setControl(b); err != nil {
		return nil, err
	}

	return kf, nil
}

// clone returns a shallow copy of k.
// Model matrices are never modified and state is replaced wholesale on commit,
// so the copies can safely share them.
func (k *KF) clone() *KF {
	kf := *k
	return &kf
}

func (k *KF) setState(x mat.Vector, p mat.Symmetric) error {
	if x == nil || p == nil {
		return fmt.Errorf("invalid initial state: %v, covariance: %v", x, p)
	}

	nx, _ := k.f.Dims()
	if x.Len() != nx {
		return fmt.Errorf("invalid state dimension: %d != %d", x.Len(), nx)
	}

	if n := p.SymmetricDim(); n != nx {
		return fmt.Errorf("invalid covariance dimensions: [%d x %d]", n, n)
	}

	cov := mat.NewSymDense(nx, nil)
	cov.CopySym(p)

	k.x = mat.VecDenseCopyOf(x)
	k.p = cov

	return nil
}

func (k *KF) setControl(b mat.Matrix) error {
	if b == nil {
		return fmt.Errorf("invalid control matrix: %v", b)
	}

	nx, _ := k.f.Dims()
	rows, cols := b.Dims()
	if rows != nx || cols <= 0 {
		return fmt.Errorf("invalid control matrix dimensions: [%d x %d]", rows, cols)
	}

	k.b = mat.DenseCopyOf(b)

	return nil
}

// Predict propagates estimate x forward by time step dt given control input u and returns the predicted estimate.
// Transition matrix is scaled by dt so a single model can be driven with variable sampling intervals:
//
//	x' = (F*dt)*x + B*u
//	P' = (F*dt)*P*(F*dt)' + Q
//
// If u is nil or there is no control matrix, control input has no effect.
// It returns ErrTransition if dt is not positive and error if x or u have invalid dimensions.
// Predict does not modify the filter.
func (k *KF) Predict(x filter.Estimate, dt float64, u mat.Vector) (filter.Estimate, error) {
	if dt <= 0 || math.IsNaN(dt) {
		return nil, fmt.Errorf("%w: non-positive time step: %v", ErrTransition, dt)
	}

	if err := k.checkEstimate(x); err != nil {
		return nil, err
	}

	if k.b != nil && u != nil {
		if _, nu := k.b.Dims(); u.Len() != nu {
			return nil, fmt.Errorf("invalid control input dimension: %d != %d", u.Len(), nu)
		}
	}

	// F*dt
	fdt := &mat.Dense{}
	fdt.Scale(dt, k.f)

	xNext := &mat.VecDense{}
	xNext.MulVec(fdt, x.Val())

	if k.b != nil && u != nil {
		bu := &mat.VecDense{}
		bu.MulVec(k.b, u)
		xNext.AddVec(xNext, bu)
	}

	// (F*dt)*P
	fp := &mat.Dense{}
	fp.Mul(fdt, x.Cov())

	// (F*dt)*P*(F*dt)' + Q
	cov := &mat.Dense{}
	cov.Mul(fp, fdt.T())
	cov.Add(cov, k.q)

	est, err := estimate.NewBaseWithCov(xNext, matrix.Symmetrize(cov))
	if err != nil {
		return nil, err
	}

	return est, nil
}

// Update corrects estimate x using observation z and returns the corrected estimate.
// z carries both the measurement vector and its noise covariance.
//
//	y = z - H*x
//	S = H*P*H' + R
//	K = P*H'*inv(S)
//	x' = x + K*y
//	P' = (I - K*H)*P
//
// It returns ErrTransition if S is singular and error if x or z have invalid dimensions.
// Update does not modify the filter.
func (k *KF) Update(x filter.Estimate, z filter.Observation) (filter.Estimate, error) {
	if err := k.checkEstimate(x); err != nil {
		return nil, err
	}

	if z == nil {
		return nil, fmt.Errorf("invalid observation: %v", z)
	}

	ny, _ := k.h.Dims()
	zVal, r := z.Val(), z.Cov()
	if zVal.Len() != ny {
		return nil, fmt.Errorf("invalid measurement dimension: %d != %d", zVal.Len(), ny)
	}

	if n := r.SymmetricDim(); n != ny {
		return nil, fmt.Errorf("invalid measurement noise dimensions: [%d x %d]", n, n)
	}

	xVal, p := x.Val(), x.Cov()

	// innovation vector: y = z - H*x
	hx := &mat.VecDense{}
	hx.MulVec(k.h, xVal)
	inn := &mat.VecDense{}
	inn.SubVec(zVal, hx)

	// P*H'
	pht := &mat.Dense{}
	pht.Mul(p, k.h.T())

	// innovation covariance: S = H*P*H' + R
	// Note: pht = P*H' so we reuse the result here
	s := &mat.Dense{}
	s.Mul(k.h, pht)
	s.Add(s, r)

	sInv := &mat.Dense{}
	if err := sInv.Inverse(s); err != nil {
		return nil, fmt.Errorf("%w: singular innovation covariance: %v", ErrTransition, err)
	}

	// Kalman gain: K = P*H'*inv(S)
	gain := &mat.Dense{}
	gain.Mul(pht, sInv)

	// x + K*y
	corr := &mat.VecDense{}
	corr.MulVec(gain, inn)
	xNext := &mat.VecDense{}
	xNext.AddVec(xVal, corr)

	// I - K*H
	kh := &mat.Dense{}
	kh.Mul(gain, k.h)
	a := &mat.Dense{}
	a.Sub(k.eye, kh)

	// (I - K*H)*P
	cov := &mat.Dense{}
	cov.Mul(a, p)

	est, err := estimate.NewBaseWithCov(xNext, matrix.Symmetrize(cov))
	if err != nil {
		return nil, err
	}

	return est, nil
}

// Step runs one filter cycle: it predicts the committed state dt forward given control input u
// and corrects the prediction using observation z.
// The result is committed into the filter and returned only if both stages succeed.
// On error the filter state is left untouched.
func (k *KF) Step(dt float64, z filter.Observation, u mat.Vector) (filter.Estimate, error) {
	pred, err := k.Predict(k.State(), dt, u)
	if err != nil {
		return nil, err
	}

	est, err := k.Update(pred, z)
	if err != nil {
		return nil, err
	}

	x := mat.VecDenseCopyOf(est.Val())
	p := mat.NewSymDense(x.Len(), nil)
	p.CopySym(est.Cov())

	k.x, k.p = x, p

	return est, nil
}

func (k *KF) checkEstimate(x filter.Estimate) error {
	if x == nil {
		return fmt.Errorf("invalid estimate: %v", x)
	}

	nx, _ := k.f.Dims()
	if n := x.Val().Len(); n != nx {
		return fmt.Errorf("invalid state dimension: %d != %d", n, nx)
	}

	if n := x.Cov().SymmetricDim(); n != nx {
		return fmt.Errorf("invalid covariance dimensions: [%d x %d]", n, n)
	}

	return nil
}

// State returns committed filter estimate
func (k *KF) State() filter.Estimate {
	// committed state and covariance dimensions always match
	est, _ := estimate.NewBaseWithCov(k.x, k.p)

	return est
}

// Cov returns committed filter covariance
func (k *KF) Cov() mat.Symmetric {
	cov := mat.NewSymDense(k.p.SymmetricDim(), nil)
	cov.CopySym(k.p)

	return cov
}

// Dims returns state (nx), measurement (ny) and control input (nu) dimensions.
// nu is 0 if the filter has no control matrix.
func (k *KF) Dims() (nx, ny, nu int) {
	nx, _ = k.f.Dims()
	ny, _ = k.h.Dims()
	if k.b != nil {
		_, nu = k.b.Dims()
	}

	return nx, ny, nu
}
