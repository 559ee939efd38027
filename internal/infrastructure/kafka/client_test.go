package kafka

import "testing"

func TestNewConsumer_RequiresTopics(t *testing.T) {
	if _, err := NewConsumer(ConsumerConfig{Broker: "localhost:9092", GroupID: "fraudserve"}); err == nil {
		t.Error("NewConsumer() expected error without topics, got nil")
	}
}
