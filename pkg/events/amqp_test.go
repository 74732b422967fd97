package events

import (
	"context"
	"encoding/json"
	"errors"
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
	deadline bool
	err      error
	closed   bool
}

func (r *recordingChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	r.exchange = exchange
	r.key = key
	r.msg = msg
	_, r.deadline = ctx.Deadline()
	return r.err
}

func (r *recordingChannel) Close() error {
	r.closed = true
	return nil
}

func TestAMQPPublisherPublish(t *testing.T) {
	ch := &recordingChannel{}
	publisher := newPublisher(ch, "timetable.events", time.Second, nil)

	err := publisher.Publish(context.Background(), map[string]string{"type": "timetable.applied", "class_id": "class-1"})
	require.NoError(t, err)

	assert.Equal(t, "", ch.exchange)
	assert.Equal(t, "timetable.events", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.True(t, ch.deadline)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, "class-1", decoded["class_id"])
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	publisher := newPublisher(ch, "timetable.events", 0, nil)

	err := publisher.Publish(context.Background(), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to timetable.events")

	require.NoError(t, publisher.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherRejectsUnmarshalable(t *testing.T) {
	publisher := newPublisher(&recordingChannel{}, "q", time.Second, nil)
	err := publisher.Publish(context.Background(), make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal event")
}

func TestLogPublisher(t *testing.T) {
	publisher := NewLogPublisher(nil)
	assert.NoError(t, publisher.Publish(context.Background(), "payload"))
	assert.NoError(t, publisher.Close())
}
