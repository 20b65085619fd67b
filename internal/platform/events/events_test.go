package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken completes immediately with a preset error.
type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{err: err, done: ch}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient records publishes. Embedding the interface satisfies the
// methods the publisher never calls.
type fakeClient struct {
	mqtt.Client
	connected bool
	err       error
	sent      []published
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newFakeToken(c.err)
}

func (c *fakeClient) IsConnectionOpen() bool { return c.connected }

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{connected: true}
	pub := newMQTTPublisher(client, zerolog.Nop())

	circle := uuid.New()
	e := New(TypeDischargeCompleted, circle, map[string]any{"tasksCreated": 2})
	require.NoError(t, pub.Publish(context.Background(), e))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "carecircle/circles/"+circle.String()+"/discharge.completed", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)

	var got Event
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, TypeDischargeCompleted, got.Type)
	assert.Equal(t, float64(2), got.Data["tasksCreated"])
}

func TestMQTTPublisher_PublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	pub := newMQTTPublisher(client, zerolog.Nop())

	err := pub.Publish(context.Background(), New(TypeHandoffPublished, uuid.New(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTPublisher_Check(t *testing.T) {
	client := &fakeClient{}
	pub := newMQTTPublisher(client, zerolog.Nop())
	assert.Error(t, pub.Check(context.Background()))

	client.connected = true
	assert.NoError(t, pub.Check(context.Background()))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), New(TypeDischargeCompleted, uuid.New(), nil)))
}
