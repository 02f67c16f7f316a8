package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/monitor"
	"github.com/itohio/gomppt/pkg/telemetry"
)

// DefaultQueueSize is the default capacity of the publish queues.
const DefaultQueueSize = 100

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// TelemetryMessage is the telemetry topic payload.
type TelemetryMessage struct {
	DeviceID string `json:"device_id"`
	telemetry.Snapshot
}

// EventMessage is the event topic payload.
type EventMessage struct {
	DeviceID string `json:"device_id"`
	monitor.Event
}

// Publisher publishes queued snapshots and events.
type Publisher struct {
	client   Client
	deviceID string
	qos      byte

	telemetryTopic string
	eventTopic     string

	snapshots chan telemetry.Snapshot
	events    chan monitor.Event
}

// NewPublisher creates a publisher for the configured device.
func NewPublisher(client Client, cfg config.MQTTConfig) *Publisher {
	return &Publisher{
		client:         client,
		deviceID:       cfg.DeviceID,
		qos:            cfg.QoS,
		telemetryTopic: formatTopic(cfg.TelemetryTopic, cfg.DeviceID),
		eventTopic:     formatTopic(cfg.EventTopic, cfg.DeviceID),
		snapshots:      make(chan telemetry.Snapshot, DefaultQueueSize),
		events:         make(chan monitor.Event, DefaultQueueSize),
	}
}

// Enqueue queues a snapshot and its events without blocking. It matches the
// monitor update callback. Snapshots are dropped when the queue is full; events
// are dropped with a log line.
func (p *Publisher) Enqueue(latest telemetry.Snapshot, events []monitor.Event) {
	select {
	case p.snapshots <- latest:
	default:
	}
	for _, e := range events {
		select {
		case p.events <- e:
		default:
			log.Printf("MQTT Publisher: event queue full, dropping %s event", e.Rule)
		}
	}
}

// Start publishes queued messages until the context is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	log.Println("MQTT Publisher: Starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT Publisher: Context cancelled, shutting down...")
			return

		case e := <-p.events:
			if err := p.PublishEvent(e); err != nil {
				log.Printf("Error publishing event: %v", err)
			}

		case s := <-p.snapshots:
			if err := p.PublishSnapshot(s); err != nil {
				log.Printf("Error publishing telemetry: %v", err)
			}
		}
	}
}

// PublishSnapshot publishes one snapshot to the telemetry topic.
func (p *Publisher) PublishSnapshot(s telemetry.Snapshot) error {
	return p.publish(p.telemetryTopic, TelemetryMessage{DeviceID: p.deviceID, Snapshot: s})
}

// PublishEvent publishes one protection event to the event topic.
func (p *Publisher) PublishEvent(e monitor.Event) error {
	return p.publish(p.eventTopic, EventMessage{DeviceID: p.deviceID, Event: e})
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// formatTopic replaces the {device_id} placeholder with the device ID.
func formatTopic(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, "{device_id}", deviceID)
}
