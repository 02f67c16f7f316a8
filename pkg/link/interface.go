package link

import "github.com/itohio/gomppt/pkg/telemetry"

// Device defines the interface for controller links (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Snapshots() <-chan telemetry.Snapshot
	Rezero() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
