package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msg = msg
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	pub := NewAMQPPublisher(ch, "marketplace.events")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := pub.Publish(context.Background(), Event{
		Type:       OrderCreated,
		Key:        "order-1",
		OccurredAt: at,
		Payload:    map[string]string{"order_id": "order-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "marketplace.events", ch.exchange)
	assert.Equal(t, OrderCreated, ch.key)
	assert.Equal(t, "order-1", ch.msg.MessageId)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, OrderCreated, decoded["type"])
	assert.Equal(t, "order-1", decoded["payload"].(map[string]any)["order_id"])
}

func TestAMQPPublisher_UnmarshalablePayload(t *testing.T) {
	pub := NewAMQPPublisher(&recordingChannel{}, "x")
	err := pub.Publish(context.Background(), Event{Type: "t", Payload: make(chan int)})
	assert.Error(t, err)
}
