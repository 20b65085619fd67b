// Package events publishes domain events to the MQTT broker so that
// notification workers can fan them out to circle members.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	TypeDischargeCompleted = "discharge.completed"
	TypeHandoffPublished   = "handoff.published"
)

// Event is the envelope written to the broker. Payloads carry identifiers
// and counts only, never clinical text.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       string         `json:"type"`
	CircleID   uuid.UUID      `json:"circleId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(eventType string, circleID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		CircleID:   circleID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Topic returns the broker topic for an event, scoped per circle.
func Topic(e Event) string {
	return fmt.Sprintf("carecircle/circles/%s/%s", e.CircleID, e.Type)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// MQTTPublisher wraps a paho client.
type MQTTPublisher struct {
	client mqtt.Client
	qos    byte
	logger zerolog.Logger
}

func NewMQTTPublisher(cfg MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return newMQTTPublisher(client, logger), nil
}

func newMQTTPublisher(client mqtt.Client, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		qos:    1,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	topic := Topic(e)
	token := p.client.Publish(topic, p.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Str("event_id", e.ID.String()).Msg("event published")
	return nil
}

// Check reports broker connectivity for the health endpoint.
func (p *MQTTPublisher) Check(context.Context) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt broker not connected")
	}
	return nil
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
