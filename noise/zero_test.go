package noise

import (
	"testing"

	filter "github.com/milosgajdos/go-kalman"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var _ filter.Noise = (*Zero)(nil)

func TestNewZero(t *testing.T) {
	assert := assert.New(t)

	e, err := NewZero(2)
	assert.NotNil(e)
	assert.NoError(err)

	for _, size := range []int{0, -10} {
		e, err := NewZero(size)
		assert.Nil(e)
		assert.Error(err)
	}
}

func TestZeroMeanCov(t *testing.T) {
	assert := assert.New(t)

	size := 2
	mean := []float64{0, 0}
	cov := mat.NewSymDense(size, []float64{0, 0, 0, 0})

	e, err := NewZero(size)
	assert.NotNil(e)
	assert.NoError(err)

	eCov := e.Cov()
	assert.Equal(cov.SymmetricDim(), eCov.SymmetricDim())
	assert.True(mat.Equal(cov, eCov))
	assert.EqualValues(mean, e.Mean())

	// returned values are copies
	e.Mean()[0] = 10.0
	assert.EqualValues(mean, e.Mean())
}

func TestZeroSample(t *testing.T) {
	assert := assert.New(t)

	e, err := NewZero(2)
	assert.NotNil(e)
	assert.NoError(err)

	sample1 := e.Sample()
	assert.Equal(2, sample1.Len())
	assert.Equal(0.0, mat.Sum(sample1))

	e.Reset()

	sample2 := e.Sample()
	assert.True(mat.Equal(sample1, sample2))
}

func TestZeroString(t *testing.T) {
	assert := assert.New(t)

	e, err := NewZero(2)
	assert.NotNil(e)
	assert.NoError(err)
	assert.Contains(e.String(), "Mean=[0 0]")
}
