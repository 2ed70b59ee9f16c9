package filter

import "gonum.org/v1/gonum/mat"

// Filter is a linear dynamical system filter.
type Filter interface {
	// Predict propagates estimate x forward by time step dt given control input u
	Predict(x Estimate, dt float64, u mat.Vector) (Estimate, error)
	// Update corrects estimate x using observation z
	Update(x Estimate, z Observation) (Estimate, error)
}

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates internal state x given input u and noise w by time step dt
	Propagate(x, u, w mat.Vector, dt float64) (mat.Vector, error)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe observes external state of the system given internal state x and noise v
	Observe(x, v mat.Vector) (mat.Vector, error)
}

// Model is a model of a dynamical system
type Model interface {
	// Propagator is system propagator
	Propagator
	// Observer is system observer
	Observer
	// SystemDims returns state, input and output dimensions of the model
	SystemDims() (nx, nu, ny int)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Observation is a measurement of the system output
type Observation interface {
	// Val returns measurement vector
	Val() mat.Vector
	// Cov returns measurement noise covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset()
}
