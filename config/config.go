// Package config loads linear Kalman filter models from YAML documents.
//
// Matrices are stored as lists of rows and vectors as plain lists:
//
//	transition: [[1, 1], [0, 1]]
//	measurement: [[1, 0]]
//	process_noise: [[0.25, 0], [0, 0.25]]
//	control: [[0.5], [1]]
//	state: [100, 0]
//	covariance: [[1, 0], [0, 1]]
//	measurement_noise: [[100]]
//	input: [-1]
package config

import (
	"fmt"
	"os"

	"github.com/milosgajdos/go-kalman/kalman/kf"
	"github.com/milosgajdos/go-kalman/matrix"
	"github.com/milosgajdos/go-kalman/sim"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// symTol is tolerance used when checking symmetry of covariance matrices
const symTol = 1e-9

// Model is a YAML model description
type Model struct {
	// Transition is per-unit-time state transition matrix
	Transition [][]float64 `yaml:"transition"`
	// Measurement is measurement matrix
	Measurement [][]float64 `yaml:"measurement"`
	// ProcessNoise is process noise covariance
	ProcessNoise [][]float64 `yaml:"process_noise"`
	// Control is optional control matrix
	Control [][]float64 `yaml:"control,omitempty"`
	// State is optional initial state
	State []float64 `yaml:"state,omitempty"`
	// Covariance is optional initial state covariance
	Covariance [][]float64 `yaml:"covariance,omitempty"`
	// Noise is optional measurement noise covariance
	Noise [][]float64 `yaml:"measurement_noise,omitempty"`
	// Input is optional constant control input
	Input []float64 `yaml:"input,omitempty"`
}

// Load reads YAML model from the file stored in path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML model from data.
// It returns error if data is not a valid YAML document or if any of the required matrices is missing.
func Parse(data []byte) (*Model, error) {
	m := &Model{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(m.Transition) == 0 || len(m.Measurement) == 0 || len(m.ProcessNoise) == 0 {
		return nil, fmt.Errorf("transition, measurement and process_noise must be defined")
	}

	if (m.State == nil) != (m.Covariance == nil) {
		return nil, fmt.Errorf("state and covariance must be defined together")
	}

	return m, nil
}

// Config returns filter configuration.
// It returns error if any of the model matrices is malformed.
func (m *Model) Config() (*kf.Config, error) {
	f, err := toDense("transition", m.Transition)
	if err != nil {
		return nil, err
	}

	h, err := toDense("measurement", m.Measurement)
	if err != nil {
		return nil, err
	}

	q, err := toSym("process_noise", m.ProcessNoise)
	if err != nil {
		return nil, err
	}

	c := &kf.Config{
		Transition:   f,
		Measurement:  h,
		ProcessNoise: q,
	}

	if len(m.Control) > 0 {
		b, err := toDense("control", m.Control)
		if err != nil {
			return nil, err
		}
		c.Control = b
	}

	if len(m.State) > 0 {
		p, err := toSym("covariance", m.Covariance)
		if err != nil {
			return nil, err
		}
		c.Init = sim.NewInitCond(mat.NewVecDense(len(m.State), m.State), p)
	}

	return c, nil
}

// MeasurementNoise returns measurement noise covariance.
// It returns error if the covariance is missing or malformed.
func (m *Model) MeasurementNoise() (mat.Symmetric, error) {
	r, err := toSym("measurement_noise", m.Noise)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// InputVector returns constant control input or nil if the model has no input.
func (m *Model) InputVector() mat.Vector {
	if len(m.Input) == 0 {
		return nil
	}

	return mat.NewVecDense(len(m.Input), m.Input)
}

func toDense(name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s: empty matrix", name)
	}

	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%s: invalid row %d length: %d != %d", name, i, len(row), c)
		}
		data = append(data, row...)
	}

	return mat.NewDense(r, c, data), nil
}

func toSym(name string, rows [][]float64) (*mat.SymDense, error) {
	d, err := toDense(name, rows)
	if err != nil {
		return nil, err
	}

	if !matrix.IsSymmetric(d, symTol) {
		return nil, fmt.Errorf("%s: matrix is not symmetric", name)
	}

	return matrix.Symmetrize(d), nil
}
