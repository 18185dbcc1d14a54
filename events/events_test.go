package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebattle-server/domain"
)

type recorder struct {
	events   []domain.Event
	closeErr error
	closed   bool
}

func (r *recorder) Publish(_ context.Context, ev domain.Event) { r.events = append(r.events, ev) }
func (r *recorder) Close() error {
	r.closed = true
	return r.closeErr
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{closeErr: errors.New("flush failed")}
	sink := Multi{a, Log{}, b}

	ev := domain.NewEvent(domain.EventMatchStarted, "r1", "")
	sink.Publish(context.Background(), ev)

	assert.Equal(t, []domain.Event{ev}, a.events)
	assert.Equal(t, []domain.Event{ev}, b.events)

	err := sink.Close()
	assert.ErrorContains(t, err, "flush failed")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMulti_Empty(t *testing.T) {
	var sink Multi
	assert.NotPanics(t, func() { sink.Publish(context.Background(), domain.Event{}) })
	assert.NoError(t, sink.Close())
}

func TestKafkaMessage(t *testing.T) {
	ev := domain.NewEvent(domain.EventGameOver, "room-7", "alice")
	ev.Problem = "two-sum"

	msg, err := kafkaMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, "room-7", string(msg.Key))
	assert.Equal(t, ev.Timestamp, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "game_over", string(msg.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.EventGameOver, decoded.Kind)
	assert.Equal(t, "alice", decoded.ClientID)
	assert.WithinDuration(t, ev.Timestamp, decoded.Timestamp, time.Millisecond)
}

func TestNewKafkaSink_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaSink(nil, "")
	assert.Error(t, err)

	sink, err := NewKafkaSink([]string{"127.0.0.1:9092"}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, sink.writer.Topic)
	assert.NoError(t, sink.Close())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "codebattle.events.room_closed", subject(DefaultSubjectPrefix, domain.EventRoomClosed))
}
