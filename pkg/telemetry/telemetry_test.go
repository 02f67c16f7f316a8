package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLine(t *testing.T) {
	s := Snapshot{
		UptimeMillis: 123456,
		Current:      9.998,
		Voltage:      36.925,
		Power:        369.19,
		Duty:         128,
		Flags:        Flags{Overcurrent: true},
		Temperatures: []float32{25, 31.5},
	}

	assert.Equal(t, "123456,9.998,36.925,369.190,128,010,25.00;31.50\n", string(AppendLine(nil, s)))
}

func TestAppendLine_NoTemperatures(t *testing.T) {
	s := Snapshot{UptimeMillis: 1, Duty: 3, Flags: Flags{MinimumDuty: true, Overvoltage: true}}

	assert.Equal(t, "1,0.000,0.000,0.000,3,101,\n", string(AppendLine(nil, s)))
}

func TestParse(t *testing.T) {
	s, err := Parse("123456,9.998,36.925,369.190,128,010,25.00;31.50\r\n")
	require.NoError(t, err)

	assert.Equal(t, int64(123456), s.UptimeMillis)
	assert.InDelta(t, 9.998, s.Current, 1e-4)
	assert.InDelta(t, 36.925, s.Voltage, 1e-4)
	assert.InDelta(t, 369.19, s.Power, 1e-3)
	assert.Equal(t, 128, s.Duty)
	assert.Equal(t, Flags{Overcurrent: true}, s.Flags)
	assert.Equal(t, []float32{25, 31.5}, s.Temperatures)
	assert.True(t, s.Timestamp.IsZero())
}

func TestParse_EmptyTemperatures(t *testing.T) {
	s, err := Parse("1,0.000,0.000,0.000,3,101,")
	require.NoError(t, err)
	assert.Nil(t, s.Temperatures)
	assert.Equal(t, Flags{MinimumDuty: true, Overvoltage: true}, s.Flags)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "1,2,3"},
		{"bad uptime", "x,0,0,0,0,000,"},
		{"bad current", "1,x,0,0,0,000,"},
		{"bad duty", "1,0,0,0,1.5,000,"},
		{"short flags", "1,0,0,0,0,00,"},
		{"bad flag digit", "1,0,0,0,0,0a0,"},
		{"bad temperature", "1,0,0,0,0,000,25;x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}
