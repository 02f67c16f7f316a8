package monitor

import (
	"log"

	"github.com/itohio/gomppt/pkg/telemetry"
)

// Stage transforms a snapshot stream.
type Stage func(in <-chan telemetry.Snapshot) <-chan telemetry.Snapshot

// NewAveragingStage averages current, voltage and power over the last
// windowSize snapshots. Every input yields one output carrying the newest
// timestamp, duty, flags and temperatures. A window of 1 or less passes the
// stream through.
func NewAveragingStage(windowSize int, bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan telemetry.Snapshot) <-chan telemetry.Snapshot {
		if windowSize <= 1 {
			return in
		}

		out := make(chan telemetry.Snapshot, bufSize)

		go func() {
			defer close(out)

			buffer := make([]telemetry.Snapshot, 0, windowSize+1)
			for s := range in {
				buffer = append(buffer, s)
				if len(buffer) > windowSize {
					buffer = append(buffer[:0], buffer[1:]...)
				}

				select {
				case out <- averageSnapshots(buffer):
				default:
					log.Printf("Averaging stage output channel full")
				}
			}
		}()

		return out
	}
}

func averageSnapshots(buf []telemetry.Snapshot) telemetry.Snapshot {
	avg := buf[len(buf)-1]

	var current, voltage, power float32
	for _, s := range buf {
		current += s.Current
		voltage += s.Voltage
		power += s.Power
	}

	n := float32(len(buf))
	avg.Current = current / n
	avg.Voltage = voltage / n
	avg.Power = power / n
	return avg
}
