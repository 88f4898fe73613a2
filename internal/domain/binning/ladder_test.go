package binning

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

func TestDefaultLadder(t *testing.T) {
	l := DefaultLadder()
	assert.Equal(t, []int{10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 34, 36, 38}, l.Levels())
	assert.Equal(t, 20, l.Default())
	assert.Equal(t, 10, l.Coarsest())
	assert.Equal(t, 38, l.Finest())
	assert.True(t, l.Contains(24))
	assert.False(t, l.Contains(25))
}

func TestNewLadder_OffGridDefaultJoins(t *testing.T) {
	l, err := NewLadder(10, 20, 4, 15)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 14, 15, 18}, l.Levels())
	assert.Equal(t, 15, l.Default())
}

func TestNewLadder_InvalidStep(t *testing.T) {
	_, err := NewLadder(10, 20, 0, 10)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))
}

func TestNewLadderFromLevels(t *testing.T) {
	l, err := NewLadderFromLevels([]int{8, 4, 8, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 8}, l.Levels())
	assert.Equal(t, 4, l.Default())

	_, err = NewLadderFromLevels(nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoLevelsConfigured))

	_, err = NewLadderFromLevels([]int{0, 2}, 2)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))

	_, err = NewLadderFromLevels([]int{2, 4}, 3)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))
}

func TestLadder_Validate(t *testing.T) {
	l := DefaultLadder()
	assert.NoError(t, l.Validate(10))
	err := l.Validate(11)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))
}

func TestLadder_WithDefault(t *testing.T) {
	l := DefaultLadder()
	l2, err := l.WithDefault(30)
	require.NoError(t, err)
	assert.Equal(t, 30, l2.Default())
	assert.Equal(t, 20, l.Default(), "original ladder is unchanged")

	_, err = l.WithDefault(31)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidResolution))
}

func TestLadder_SelectLevel(t *testing.T) {
	l, err := NewLadderFromLevels([]int{10, 20, 30, 40}, 20, WithZoomRange(0, 4))
	require.NoError(t, err)

	cases := []struct {
		zoom float64
		want int
	}{
		{-5, 10},
		{0, 10},
		{0.99, 10},
		{1, 20},
		{2.5, 30},
		{3.99, 40},
		{4, 40},
		{100, 40},
		{math.Inf(1), 40},
		{math.Inf(-1), 10},
		{math.NaN(), 10},
	}
	for _, tc := range cases {
		got, err := l.SelectLevel(tc.zoom)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "zoom=%v", tc.zoom)
	}
}

func TestLadder_SelectLevel_MonotonicAndIdempotent(t *testing.T) {
	l := DefaultLadder()
	prev := 0
	for z := 0.0; z <= 9.0; z += 0.05 {
		got, err := l.SelectLevel(z)
		require.NoError(t, err)
		again, _ := l.SelectLevel(z)
		assert.Equal(t, got, again)
		assert.GreaterOrEqual(t, got, prev)
		assert.True(t, l.Contains(got))
		prev = got
	}
	assert.Equal(t, l.Finest(), prev)
}

func TestLadder_SelectLevel_Empty(t *testing.T) {
	var l Ladder
	_, err := l.SelectLevel(3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoLevelsConfigured))
}

func TestWithZoomRange_IgnoresInvertedRange(t *testing.T) {
	l, err := NewLadderFromLevels([]int{1, 2}, 1, WithZoomRange(5, 1))
	require.NoError(t, err)
	min, max := l.ZoomRange()
	assert.Equal(t, DefaultZoomMin, min)
	assert.Equal(t, DefaultZoomMax, max)
}
