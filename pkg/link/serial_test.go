package link

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/telemetry"
)

// fakePort feeds scripted lines and records writes.
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written bytes.Buffer
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.w.Close()
	return p.r.Close()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func newTestSerial(port *fakePort) *Serial {
	d := NewSerial("COM3", 115200, 10)
	d.open = func(string, int) (io.ReadWriteCloser, error) { return port, nil }
	return d
}

func TestNewSerial(t *testing.T) {
	dev := NewSerial("COM3", 115200, 100)
	assert.NotNil(t, dev)
	assert.Equal(t, "COM3", dev.port)
	assert.Equal(t, 115200, dev.baudRate)
	assert.Equal(t, 100, cap(dev.snapshots))
	assert.False(t, dev.IsConnected())
}

func TestNewSerial_Defaults(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.Equal(t, DefaultBaudRate, dev.baudRate)
	assert.Equal(t, DefaultBufferSize, cap(dev.snapshots))
}

func TestSerial_ConnectFailure(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	dev.open = func(string, int) (io.ReadWriteCloser, error) { return nil, errors.New("busy") }

	err := dev.Connect()
	assert.Error(t, err)
	assert.False(t, dev.IsConnected())
}

func TestSerial_ReadsSnapshots(t *testing.T) {
	port := newFakePort()
	dev := newTestSerial(port)
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dev.now = func() time.Time { return stamp }

	require.NoError(t, dev.Connect())
	assert.ErrorIs(t, dev.Connect(), ErrConnected)

	go func() {
		io.WriteString(port.w, "garbage\n\n")
		io.WriteString(port.w, "1500,9.998,12.600,125.975,130,010,25.00;31.50\n")
		io.WriteString(port.w, "1600,0.000,22.000,0.000,131,100,\n")
	}()

	var got []telemetry.Snapshot
	for len(got) < 2 {
		select {
		case s := <-dev.Snapshots():
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshots")
		}
	}

	assert.Equal(t, int64(1500), got[0].UptimeMillis)
	assert.InDelta(t, 9.998, got[0].Current, 1e-3)
	assert.Equal(t, 130, got[0].Duty)
	assert.True(t, got[0].Flags.Overcurrent)
	assert.False(t, got[0].Flags.MinimumDuty)
	assert.Equal(t, []float32{25, 31.5}, got[0].Temperatures)
	assert.Equal(t, stamp, got[0].Timestamp)

	assert.True(t, got[1].Flags.MinimumDuty)
	assert.Empty(t, got[1].Temperatures)

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
}

func TestSerial_Rezero(t *testing.T) {
	port := newFakePort()
	dev := newTestSerial(port)

	assert.ErrorIs(t, dev.Rezero(), ErrNotConnected)

	require.NoError(t, dev.Connect())
	defer dev.Close()

	require.NoError(t, dev.Rezero())
	assert.Equal(t, "Z\n", port.Written())
}

func TestSerial_CloseEndsStream(t *testing.T) {
	port := newFakePort()
	dev := newTestSerial(port)

	require.NoError(t, dev.Connect())
	require.NoError(t, dev.Close())

	select {
	case _, ok := <-dev.Snapshots():
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshots channel did not close within timeout")
	}
}

func TestSerial_DropsFirstLine(t *testing.T) {
	port := newFakePort()
	dev := newTestSerial(port)

	require.NoError(t, dev.Connect())
	defer dev.Close()

	go func() {
		io.WriteString(port.w, "0,0.000,22.000,0.000,128,000,\n")
		io.WriteString(port.w, "100,1.000,22.000,22.000,128,000,\n")
	}()

	select {
	case s := <-dev.Snapshots():
		assert.Equal(t, int64(100), s.UptimeMillis)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestSerial_Reconnect(t *testing.T) {
	ports := []*fakePort{newFakePort(), newFakePort()}
	opened := 0
	dev := NewSerial("COM3", 115200, 10)
	dev.open = func(string, int) (io.ReadWriteCloser, error) {
		p := ports[opened]
		opened++
		return p, nil
	}

	require.NoError(t, dev.Connect())
	first := dev.Snapshots()
	require.NoError(t, dev.Close())

	select {
	case _, ok := <-first:
		assert.False(t, ok, "Channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("first snapshots channel did not close")
	}

	require.NoError(t, dev.Connect())
	defer dev.Close()
	assert.True(t, dev.IsConnected())

	second := dev.Snapshots()
	assert.NotEqual(t, first, second)

	go func() {
		io.WriteString(ports[1].w, "partial\n")
		io.WriteString(ports[1].w, "200,1.000,22.000,22.000,128,000,\n")
	}()

	select {
	case s, ok := <-second:
		require.True(t, ok)
		assert.Equal(t, int64(200), s.UptimeMillis)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot after reconnect")
	}

	require.NoError(t, dev.Rezero())
	assert.Equal(t, "Z\n", ports[1].Written())
	assert.Empty(t, ports[0].Written())
}

func TestSerial_CloseWhenDisconnected(t *testing.T) {
	dev := NewSerial("COM3", 0, 0)
	assert.NoError(t, dev.Close())
}
