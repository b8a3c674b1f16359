package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrgen/qda/internal/coding"
)

type fakeProducer struct {
	messages []*kafka.Message
	fail     error
	closed   bool
}

func (f *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	f.messages = append(f.messages, msg)
	reply := *msg
	reply.TopicPartition.Error = f.fail
	deliveryChan <- &reply
	return nil
}

func (f *fakeProducer) Flush(int) int {
	return 0
}

func (f *fakeProducer) Close() {
	f.closed = true
}

var event = coding.Event{
	Kind:       coding.EventRemoved,
	ProjectID:  "p1",
	SourceID:   "src-1",
	Codes:      []coding.Code{{ID: "c1"}},
	Selections: []coding.Selection{{ID: "s1"}, {ID: "s2"}},
}

func TestKafkaQueue_Publish(t *testing.T) {
	p := &fakeProducer{}
	q := newKafkaQueue(p, CodingEventTopic)

	require.NoError(t, q.Publish(context.TODO(), event))
	require.Len(t, p.messages, 1)

	msg := p.messages[0]
	assert.Equal(t, CodingEventTopic, *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("src-1"), msg.Key)

	var got Message
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, coding.EventRemoved, got.Kind)
	assert.Equal(t, []string{"c1"}, got.CodeIDs)
	assert.Equal(t, []string{"s1", "s2"}, got.SelectionIDs)

	require.NoError(t, q.Close())
	assert.True(t, p.closed)
}

func TestKafkaQueue_DeliveryFailure(t *testing.T) {
	failure := errors.New("broker down")
	q := newKafkaQueue(&fakeProducer{fail: failure}, CodingEventTopic)

	assert.ErrorIs(t, q.Publish(context.TODO(), event), failure)
}

func TestSink(t *testing.T) {
	q := NewMemoryQueue(1)
	sink := Sink(context.TODO(), q)

	sink.Notify(event)
	got := <-q.Subscribe()
	assert.Equal(t, event, got)

	// a full queue must not block the session
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	blocked := Sink(ctx, q)
	blocked.Notify(event)
	blocked.Notify(event)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}
