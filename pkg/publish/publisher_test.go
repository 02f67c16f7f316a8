package publish

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/monitor"
	"github.com/itohio/gomppt/pkg/telemetry"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func (c *fakeClient) Published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func testMQTTConfig() config.MQTTConfig {
	cfg := config.Default().MQTT
	cfg.DeviceID = "roof"
	cfg.QoS = 1
	return cfg
}

func TestClientID(t *testing.T) {
	cfg := testMQTTConfig()

	cfg.ClientID = "fixed"
	assert.Equal(t, "fixed", ClientID(cfg))

	cfg.ClientID = ""
	a, b := ClientID(cfg), ClientID(cfg)
	assert.True(t, strings.HasPrefix(a, "gomppt-"))
	assert.NotEqual(t, a, b)
}

func TestFormatTopic(t *testing.T) {
	assert.Equal(t, "gomppt/roof/telemetry", formatTopic("gomppt/{device_id}/telemetry", "roof"))
	assert.Equal(t, "static", formatTopic("static", "roof"))
}

func TestPublishSnapshot(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, testMQTTConfig())

	s := telemetry.Snapshot{
		UptimeMillis: 1500,
		Current:      9.5,
		Voltage:      30,
		Power:        285,
		Duty:         110,
		Flags:        telemetry.Flags{Overcurrent: true},
		Temperatures: []float32{25},
	}
	require.NoError(t, p.PublishSnapshot(s))

	msgs := client.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "gomppt/roof/telemetry", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, "roof", got["device_id"])
	assert.Equal(t, float64(110), got["duty"])
	assert.Equal(t, float64(1500), got["uptime_ms"])
	assert.Equal(t, map[string]any{"mdd": false, "ocp": true, "ovp": false}, got["flags"])
}

func TestPublishEvent(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, testMQTTConfig())

	require.NoError(t, p.PublishEvent(monitor.Event{Rule: "ovp", Active: true, Uptime: 42}))

	msgs := client.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "gomppt/roof/events", msgs[0].topic)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, "ovp", got["rule"])
	assert.Equal(t, true, got["active"])
	assert.Equal(t, "roof", got["device_id"])
}

func TestPublish_TokenError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewPublisher(client, testMQTTConfig())

	err := p.PublishSnapshot(telemetry.Snapshot{})
	assert.ErrorContains(t, err, "not connected")
}

func TestStart_DrainsQueues(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, testMQTTConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Start(ctx)
	}()

	p.Enqueue(telemetry.Snapshot{Duty: 1}, []monitor.Event{{Rule: "mdd", Active: true}})
	p.Enqueue(telemetry.Snapshot{Duty: 2}, nil)

	assert.Eventually(t, func() bool { return len(client.Published()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher did not stop")
	}

	topics := map[string]int{}
	for _, m := range client.Published() {
		topics[m.topic]++
	}
	assert.Equal(t, map[string]int{"gomppt/roof/telemetry": 2, "gomppt/roof/events": 1}, topics)
}

func TestEnqueue_DropsWhenFull(t *testing.T) {
	p := NewPublisher(&fakeClient{}, testMQTTConfig())

	for i := 0; i < DefaultQueueSize+10; i++ {
		p.Enqueue(telemetry.Snapshot{Duty: i}, []monitor.Event{{Rule: "ocp"}})
	}

	assert.Len(t, p.snapshots, DefaultQueueSize)
	assert.Len(t, p.events, DefaultQueueSize)
}
