package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rollingInput = []float64{1, 3, 2, 5, 4}

func TestRollingMax(t *testing.T) {
	got, err := RollingMax(rollingInput, 3)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 3, got[2], 1e-9)
	assert.InDelta(t, 5, got[3], 1e-9)
	assert.InDelta(t, 5, got[4], 1e-9)
}

func TestRollingMin(t *testing.T) {
	got, err := RollingMin(rollingInput, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 1, got[2], 1e-9)
	assert.InDelta(t, 2, got[3], 1e-9)
	assert.InDelta(t, 2, got[4], 1e-9)
}

func TestRollingMean(t *testing.T) {
	got, err := RollingMean(rollingInput, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(got[1]))
	assert.InDelta(t, 2, got[2], 1e-9)      // (1+3+2)/3
	assert.InDelta(t, 10.0/3, got[3], 1e-9) // (3+2+5)/3
	assert.InDelta(t, 11.0/3, got[4], 1e-9) // (2+5+4)/3
}

func TestRollingStdev(t *testing.T) {
	got, err := RollingStdev(rollingInput, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(got[1]))
	// Sample stdev: [1,3,2] has variance 1.
	assert.InDelta(t, 1, got[2], 1e-9)
	assert.InDelta(t, math.Sqrt(7.0/3), got[3], 1e-9)
	assert.InDelta(t, math.Sqrt(7.0/3), got[4], 1e-9)

	constant, err := RollingStdev([]float64{4, 4, 4}, 2)
	require.NoError(t, err)
	assert.Zero(t, constant[2])
}

func TestRollingWindowErrors(t *testing.T) {
	_, err := RollingMax(rollingInput, 0)
	require.Error(t, err)
	_, err = RollingMin(rollingInput, 6)
	require.Error(t, err)
	_, err = RollingMean(nil, 1)
	require.Error(t, err)
	_, err = RollingStdev(rollingInput, 1) // sample stdev needs two points
	require.Error(t, err)
}
