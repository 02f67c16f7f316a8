package duty

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c, err := New(0, 255, 128)
	require.NoError(t, err)
	assert.Equal(t, 128, c.Value())
	assert.Equal(t, 0, c.Min())
	assert.Equal(t, 255, c.Max())

	_, err = New(10, 10, 10)
	assert.Error(t, err)
}

func TestNew_ClampsInitial(t *testing.T) {
	c, err := New(0, 255, 400)
	require.NoError(t, err)
	assert.Equal(t, 255, c.Value())
	assert.Equal(t, uint32(1), c.Clamps())
}

func TestAdjust(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		delta     int
		wantValue int
		wantDelta int
	}{
		{"increase", 100, 1, 101, 1},
		{"decrease", 100, -2, 98, -2},
		{"clamp high", 254, 2, 255, 1},
		{"clamp low", 1, -2, 0, -1},
		{"at max", 255, 1, 255, 0},
		{"at min", 0, -2, 0, 0},
		{"zero", 50, 0, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(0, 255, tt.start)
			require.NoError(t, err)

			assert.Equal(t, tt.wantDelta, c.Adjust(tt.delta))
			assert.Equal(t, tt.wantValue, c.Value())
		})
	}
}

func TestFraction(t *testing.T) {
	c, err := New(0, 200, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, c.Fraction(), 1e-6)
}
