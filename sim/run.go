package sim

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-kalman"
	"github.com/milosgajdos/go-kalman/estimate"
	"github.com/milosgajdos/go-kalman/kalman"
	"github.com/milosgajdos/go-kalman/matrix"
	"github.com/milosgajdos/go-kalman/noise"
	"gonum.org/v1/gonum/mat"
)

// Runner runs a filter against a simulated system
type Runner struct {
	// Model is the simulated system
	Model filter.Model
	// Filter estimates the Model state from noisy measurements
	Filter kalman.Kalman
	// StateNoise perturbs Model state; nil means no process noise
	StateNoise filter.Noise
	// OutputNoise perturbs Model output; nil means noiseless measurements.
	// Its covariance is passed to the Filter with every measurement.
	OutputNoise filter.Noise
	// Input is a constant control input; nil means no input
	Input mat.Vector
}

// Result stores simulation output.
// Each row of each matrix contains simulation time followed by the system output.
type Result struct {
	// Truth is the noiseless system output
	Truth *mat.Dense
	// Meas is the measured i.e. noisy system output
	Meas *mat.Dense
	// Filter is the system output of the filter estimate
	Filter *mat.Dense
}

// Run runs the simulation starting from state x, advancing the system by time steps dts.
// It returns error if the filter fails to step or if the system fails to be propagated or observed.
func (r *Runner) Run(x mat.Vector, dts []float64) (*Result, error) {
	if r.Model == nil || r.Filter == nil {
		return nil, fmt.Errorf("invalid runner: model %v, filter %v", r.Model, r.Filter)
	}

	if len(dts) == 0 {
		return nil, fmt.Errorf("invalid number of time steps: %d", len(dts))
	}

	_, _, ny := r.Model.SystemDims()

	outNoise := r.OutputNoise
	if outNoise == nil {
		z, err := noise.NewZero(ny)
		if err != nil {
			return nil, err
		}
		outNoise = z
	}

	if n := outNoise.Cov().SymmetricDim(); n != ny {
		return nil, fmt.Errorf("invalid output noise dimensions: [%d x %d]", n, n)
	}

	var stateNoise filter.Noise
	if r.StateNoise != nil {
		stateNoise = r.StateNoise
	} else {
		stateNoise, _ = noise.NewNone()
	}

	res := &Result{
		Truth:  mat.NewDense(len(dts), ny+1, nil),
		Meas:   mat.NewDense(len(dts), ny+1, nil),
		Filter: mat.NewDense(len(dts), ny+1, nil),
	}

	var err error
	t := 0.0
	for i, dt := range dts {
		t += dt

		// ground truth propagation
		x, err = r.Model.Propagate(x, r.Input, stateNoise.Sample(), dt)
		if err != nil {
			return nil, fmt.Errorf("model propagation failed at step %d: %w", i, err)
		}

		// ground truth observation
		y, err := r.Model.Observe(x, nil)
		if err != nil {
			return nil, fmt.Errorf("model observation failed at step %d: %w", i, err)
		}

		// measurement: z = y + noise
		z, err := r.Model.Observe(x, outNoise.Sample())
		if err != nil {
			return nil, fmt.Errorf("model observation failed at step %d: %w", i, err)
		}

		obs, err := estimate.NewBaseWithCov(z, outNoise.Cov())
		if err != nil {
			return nil, err
		}

		est, err := r.Filter.Step(dt, obs, r.Input)
		if err != nil {
			return nil, fmt.Errorf("filter step %d failed: %w", i, err)
		}

		yf, err := r.Model.Observe(est.Val(), nil)
		if err != nil {
			return nil, fmt.Errorf("filter observation failed at step %d: %w", i, err)
		}

		setRow(res.Truth, i, t, y)
		setRow(res.Meas, i, t, z)
		setRow(res.Filter, i, t, yf)
	}

	return res, nil
}

func setRow(m *mat.Dense, i int, t float64, v mat.Vector) {
	m.Set(i, 0, t)
	for j := 0; j < v.Len(); j++ {
		m.Set(i, j+1, v.AtVec(j))
	}
}

// RMSE returns root mean square error of est against ref for every output column.
// The first column of both matrices stores time and is skipped.
// It returns error if the matrices are nil or their dimensions differ.
func RMSE(ref, est *mat.Dense) ([]float64, error) {
	if ref == nil || est == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	r, c := ref.Dims()
	if re, ce := est.Dims(); r != re || c != ce || c < 2 {
		return nil, fmt.Errorf("invalid data dimensions: [%d x %d] != [%d x %d]", r, c, re, ce)
	}

	diff := &mat.Dense{}
	diff.Sub(ref, est)
	diff.MulElem(diff, diff)

	sums := matrix.ColSums(diff)
	rmse := make([]float64, c-1)
	for j := 1; j < c; j++ {
		rmse[j-1] = math.Sqrt(sums[j] / float64(r))
	}

	return rmse, nil
}
