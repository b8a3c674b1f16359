package queue

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/coding"
)

type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

var _ EventQueue = (*KafkaQueue)(nil)

// KafkaQueue publishes events keyed by source id, so the events of one
// source stay ordered within a partition.
type KafkaQueue struct {
	producer producer
	topic    string
}

func NewKafkaQueue(brokers, topic string) (*KafkaQueue, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("publishing coding events to %s on %s", topic, brokers)

	return newKafkaQueue(p, topic), nil
}

func newKafkaQueue(p producer, topic string) *KafkaQueue {
	return &KafkaQueue{producer: p, topic: topic}
}

func (k *KafkaQueue) Publish(ctx context.Context, event coding.Event) error {
	value, err := NewMessage(event).MarshalBinary()
	if err != nil {
		return err
	}

	delivery := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.SourceID),
		Value:          value,
	}, delivery)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-delivery:
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return m.TopicPartition.Error
		}
		return nil
	}
}

func (k *KafkaQueue) Close() error {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logrus.Warnf("closing kafka producer with %d undelivered events", remaining)
	}
	k.producer.Close()
	return nil
}
