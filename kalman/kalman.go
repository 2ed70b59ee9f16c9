package kalman

import (
	filter "github.com/milosgajdos/go-kalman"
	"gonum.org/v1/gonum/mat"
)

// Kalman is Kalman Filter which owns its committed estimate
type Kalman interface {
	// filter.Filter is dynamical system filter
	filter.Filter
	// Step runs a single predict-update cycle and commits its result
	Step(dt float64, z filter.Observation, u mat.Vector) (filter.Estimate, error)
	// State returns the committed filter estimate
	State() filter.Estimate
}
