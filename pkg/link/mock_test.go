package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/telemetry"
)

func testMockConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.SampleRate = 5 * time.Millisecond
	cfg.Mock.TicksPerSample = 50
	return cfg
}

func receive(t *testing.T, ch <-chan telemetry.Snapshot, n int) []telemetry.Snapshot {
	t.Helper()

	var got []telemetry.Snapshot
	for len(got) < n {
		select {
		case s, ok := <-ch:
			require.True(t, ok, "Channel closed early")
			got = append(got, s)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d snapshots", len(got), n)
		}
	}
	return got
}

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	assert.NotNil(t, m.cfg)
	assert.False(t, m.IsConnected())
}

func TestMock_ConnectTwice(t *testing.T) {
	m := NewMock(testMockConfig())
	require.NoError(t, m.Connect())
	defer m.Close()

	assert.ErrorIs(t, m.Connect(), ErrConnected)
	assert.True(t, m.IsConnected())
}

func TestMock_InvalidConfig(t *testing.T) {
	cfg := testMockConfig()
	cfg.Sensing.WindowSize = 0

	m := NewMock(cfg)
	assert.Error(t, m.Connect())
	assert.False(t, m.IsConnected())
}

func TestMock_SnapshotsAdvance(t *testing.T) {
	cfg := testMockConfig()
	m := NewMock(cfg)
	require.NoError(t, m.Connect())
	defer m.Close()

	got := receive(t, m.Snapshots(), 3)

	for i, s := range got {
		assert.Equal(t, int64((i+1)*50), s.UptimeMillis)
		assert.False(t, s.Timestamp.IsZero())
		assert.GreaterOrEqual(t, s.Duty, cfg.Duty.Min)
		assert.LessOrEqual(t, s.Duty, cfg.Duty.Max)
	}
}

func TestMock_DeliversPower(t *testing.T) {
	cfg := testMockConfig()
	cfg.Mock.NoiseCounts = 0

	m := NewMock(cfg)
	require.NoError(t, m.Connect())
	defer m.Close()

	got := receive(t, m.Snapshots(), 4)

	// Power is first sampled at 100ms, the second snapshot.
	for _, s := range got[1:] {
		assert.Greater(t, s.Current, float32(5))
		assert.Greater(t, s.Power, float32(100))
		assert.Equal(t, telemetry.Flags{}, s.Flags)
	}
}

func TestMock_Rezero(t *testing.T) {
	m := NewMock(testMockConfig())
	assert.ErrorIs(t, m.Rezero(), ErrNotConnected)

	require.NoError(t, m.Connect())
	defer m.Close()

	receive(t, m.Snapshots(), 1)
	require.NoError(t, m.Rezero())
	receive(t, m.Snapshots(), 1)
}

// TestMock_GracefulShutdown tests that Mock closes the snapshots channel
// when Close() is called.
func TestMock_GracefulShutdown(t *testing.T) {
	m := NewMock(testMockConfig())
	require.NoError(t, m.Connect())

	snapshots := m.Snapshots()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range snapshots {
			received++
			if received >= 3 {
				m.Close()
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Snapshots channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive snapshots before channel closes")
	assert.False(t, m.IsConnected())
	assert.ErrorIs(t, m.Rezero(), ErrNotConnected)
}

func TestMock_Reconnect(t *testing.T) {
	m := NewMock(testMockConfig())

	require.NoError(t, m.Connect())
	first := m.Snapshots()
	receive(t, first, 1)
	require.NoError(t, m.Close())

	// The old stream drains and closes.
	deadline := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-first:
		case <-deadline:
			t.Fatal("first snapshots channel did not close")
		}
	}

	require.NoError(t, m.Connect())
	defer m.Close()
	assert.True(t, m.IsConnected())

	second := m.Snapshots()
	assert.NotEqual(t, first, second)

	got := receive(t, second, 1)
	assert.Equal(t, int64(50), got[0].UptimeMillis, "simulation restarts")
	require.NoError(t, m.Rezero())
}
