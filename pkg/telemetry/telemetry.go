// Package telemetry defines the controller status frame and its line encoding.
//
// Line format (one frame per line):
//
//	uptime_ms,current,voltage,power,duty,flags,temps
//	123456,9.998,36.925,369.190,128,010,25.00;31.50
//
// flags are three digits: minimum-duty, overcurrent, overvoltage.
// temps are ';'-separated °C values and may be empty.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RezeroCommand asks the controller to recompute its zero-current offset.
const RezeroCommand = 'Z'

// ErrFormat is returned for malformed telemetry lines.
var ErrFormat = errors.New("telemetry: invalid line")

const fieldCount = 7

// Flags mirrors the protection flags.
type Flags struct {
	MinimumDuty bool `json:"mdd"`
	Overcurrent bool `json:"ocp"`
	Overvoltage bool `json:"ovp"`
}

// Snapshot is one status frame of the controller.
type Snapshot struct {
	Timestamp    time.Time `json:"timestamp"` // Receive time on the host
	UptimeMillis int64     `json:"uptime_ms"`
	Current      float32   `json:"current"` // A
	Voltage      float32   `json:"voltage"` // V
	Power        float32   `json:"power"`   // W
	Duty         int       `json:"duty"`
	Flags        Flags     `json:"flags"`
	Temperatures []float32 `json:"temperatures"` // °C
}

// AppendLine appends the line encoding of s, including the trailing newline.
func AppendLine(dst []byte, s Snapshot) []byte {
	dst = strconv.AppendInt(dst, s.UptimeMillis, 10)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, float64(s.Current), 'f', 3, 32)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, float64(s.Voltage), 'f', 3, 32)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, float64(s.Power), 'f', 3, 32)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(s.Duty), 10)
	dst = append(dst, ',')
	dst = appendBit(dst, s.Flags.MinimumDuty)
	dst = appendBit(dst, s.Flags.Overcurrent)
	dst = appendBit(dst, s.Flags.Overvoltage)
	dst = append(dst, ',')
	for i, t := range s.Temperatures {
		if i > 0 {
			dst = append(dst, ';')
		}
		dst = strconv.AppendFloat(dst, float64(t), 'f', 2, 32)
	}
	return append(dst, '\n')
}

func appendBit(dst []byte, b bool) []byte {
	if b {
		return append(dst, '1')
	}
	return append(dst, '0')
}

// Parse decodes one telemetry line. Timestamp is left zero.
func Parse(line string) (Snapshot, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != fieldCount {
		return Snapshot{}, fmt.Errorf("%w: expected %d comma-separated values, got %d", ErrFormat, fieldCount, len(parts))
	}

	uptime, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: uptime: %v", ErrFormat, err)
	}

	var values [3]float32
	for i, name := range []string{"current", "voltage", "power"} {
		v, err := strconv.ParseFloat(parts[1+i], 32)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
		}
		values[i] = float32(v)
	}

	duty, err := strconv.Atoi(parts[4])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: duty: %v", ErrFormat, err)
	}

	flags, err := parseFlags(parts[5])
	if err != nil {
		return Snapshot{}, err
	}

	var temps []float32
	if parts[6] != "" {
		for _, field := range strings.Split(parts[6], ";") {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return Snapshot{}, fmt.Errorf("%w: temperature: %v", ErrFormat, err)
			}
			temps = append(temps, float32(v))
		}
	}

	return Snapshot{
		UptimeMillis: uptime,
		Current:      values[0],
		Voltage:      values[1],
		Power:        values[2],
		Duty:         duty,
		Flags:        flags,
		Temperatures: temps,
	}, nil
}

func parseFlags(s string) (Flags, error) {
	if len(s) != 3 {
		return Flags{}, fmt.Errorf("%w: flags: expected 3 digits, got %d", ErrFormat, len(s))
	}
	var bits [3]bool
	for i := 0; i < 3; i++ {
		switch s[i] {
		case '0':
		case '1':
			bits[i] = true
		default:
			return Flags{}, fmt.Errorf("%w: flags: invalid digit %q", ErrFormat, s[i])
		}
	}
	return Flags{MinimumDuty: bits[0], Overcurrent: bits[1], Overvoltage: bits[2]}, nil
}
