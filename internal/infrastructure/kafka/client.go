// Package kafka wraps confluent-kafka-go consumers and producers for the
// stream scorer.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/labstack/gommon/log"
)

const pollTimeoutMs = 100

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// HandlerFunc processes one message. A returned error stops Run and leaves
// the message's offset unstored.
type HandlerFunc func(ctx context.Context, msg Message) error

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Broker      string
	GroupID     string
	Topics      []string
	CommitEvery int
}

// Consumer polls topics and commits offsets every CommitEvery messages.
type Consumer struct {
	c           *kafka.Consumer
	commitEvery int
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"group.id":           cfg.GroupID,
		"auto.offset.reset":  "smallest",
		"enable.auto.commit": "false",
		// Offsets are stored only after a message was handled.
		"enable.auto.offset.store": "false",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	if err := c.SubscribeTopics(cfg.Topics, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", cfg.Topics, err)
	}

	commitEvery := cfg.CommitEvery
	if commitEvery <= 0 {
		commitEvery = 1
	}
	return &Consumer{c: c, commitEvery: commitEvery}, nil
}

// Run polls until ctx is done, the broker reports a fatal error or handle
// fails. A failed message's offset is never stored, so it is redelivered
// after a restart. A handler failing because ctx ended is a clean stop. Offsets of handled messages are committed once more on
// the way out.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	count := 0
	defer c.commit()

	for {
		select {
		case <-ctx.Done():
			log.Infof("[Consumer] Stopping after %d messages", count)
			return nil
		default:
		}

		ev := c.c.Poll(pollTimeoutMs)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := Message{
				Key:       e.Key,
				Value:     e.Value,
				Partition: e.TopicPartition.Partition,
				Offset:    int64(e.TopicPartition.Offset),
			}
			if e.TopicPartition.Topic != nil {
				msg.Topic = *e.TopicPartition.Topic
			}
			if err := handle(ctx, msg); err != nil {
				if ctx.Err() != nil {
					log.Infof("[Consumer] Stopping after %d messages; %s[%d]@%d left for redelivery", count, msg.Topic, msg.Partition, msg.Offset)
					return nil
				}
				return fmt.Errorf("failed to handle %s[%d]@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			if _, err := c.c.StoreMessage(e); err != nil {
				log.Warnf("[Consumer] Failed to store offset %s[%d]@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			}

			count++
			if count%c.commitEvery == 0 {
				c.commit()
			}

		case kafka.PartitionEOF:
			log.Debugf("[Consumer] Reached %v", e)
		case kafka.Error:
			if e.IsFatal() {
				return fmt.Errorf("fatal consumer error: %w", e)
			}
			log.Warnf("[Consumer] Error: %v", e)
		default:
			log.Debugf("[Consumer] Ignored %v", e)
		}
	}
}

func (c *Consumer) commit() {
	if _, err := c.c.Commit(); err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrNoOffset {
			return
		}
		log.Warnf("[Consumer] Commit failed: %v", err)
	}
}

func (c *Consumer) Close() error {
	return c.c.Close()
}

// Producer publishes messages and waits for their delivery reports.
type Producer struct {
	p *kafka.Producer
}

func NewProducer(broker string) (*Producer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  broker,
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return &Producer{p: p}, nil
}

// Publish produces one message and blocks until it is acknowledged.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	delivery := make(chan kafka.Event, 1)
	err := p.p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          value,
	}, delivery)
	if err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery to %s failed: %w", topic, m.TopicPartition.Error)
		}
		return nil
	}
}

// Close flushes outstanding messages and closes the producer.
func (p *Producer) Close() {
	if remaining := p.p.Flush(5000); remaining > 0 {
		log.Warnf("[Producer] %d messages not delivered before close", remaining)
	}
	p.p.Close()
}
