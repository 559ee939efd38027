// Package stream scores transaction payloads consumed from a message broker.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
	"fraudserve/internal/infrastructure/kafka"
)

var (
	streamMeter       = otel.Meter("fraudserve/stream")
	streamMessages, _ = streamMeter.Int64Counter("fraud.stream.messages",
		metric.WithDescription("Stream messages scored by outcome"),
	)
)

// Predictor runs the prediction pipeline.
type Predictor interface {
	Predict(ctx context.Context, records []*transaction.Record) (*prediction.Result, error)
}

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Deduper remembers stream positions that were already handled.
type Deduper interface {
	Seen(ctx context.Context, topic string, partition int32, offset int64) (bool, error)
	Mark(ctx context.Context, topic string, partition int32, offset int64) error
}

// DeadLetter is published for payloads that could not be scored. Details
// carries the original payload verbatim.
type DeadLetter struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Cause     string `json:"cause,omitempty"`
	Details   string `json:"details"`
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// Topics names where scored and rejected payloads go.
type Topics struct {
	Output string
	DLQ    string
}

// Scorer turns each consumed payload into either a scored result on the
// output topic or a dead letter on the DLQ topic.
type Scorer struct {
	predictor Predictor
	publisher Publisher
	topics    Topics
	deduper   Deduper
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithDeduper skips messages whose position was already handled. Dedupe
// store errors are logged and the message is scored anyway.
func WithDeduper(d Deduper) Option {
	return func(s *Scorer) {
		s.deduper = d
	}
}

func NewScorer(predictor Predictor, publisher Publisher, topics Topics, opts ...Option) *Scorer {
	s := &Scorer{predictor: predictor, publisher: publisher, topics: topics}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle scores one message. It only fails when publishing fails.
func (s *Scorer) Handle(ctx context.Context, msg kafka.Message) error {
	if s.deduper != nil {
		seen, err := s.deduper.Seen(ctx, msg.Topic, msg.Partition, msg.Offset)
		if err != nil {
			log.Warnf("[Scorer] dedupe lookup failed for %s@%d: %v", msg.Topic, msg.Offset, err)
		} else if seen {
			s.count(ctx, "duplicate")
			log.Debugf("[Scorer] %s@%d already handled, skipping", msg.Topic, msg.Offset)
			return nil
		}
	}

	if err := s.handle(ctx, msg); err != nil {
		return err
	}

	if s.deduper != nil {
		if err := s.deduper.Mark(ctx, msg.Topic, msg.Partition, msg.Offset); err != nil {
			log.Warnf("[Scorer] dedupe mark failed for %s@%d: %v", msg.Topic, msg.Offset, err)
		}
	}
	return nil
}

func (s *Scorer) handle(ctx context.Context, msg kafka.Message) error {
	key := msg.Key
	if len(key) == 0 {
		key = []byte(uuid.NewString())
	}

	records, err := prediction.ParseInput(msg.Value)
	if err == nil {
		var result *prediction.Result
		result, err = s.predictor.Predict(ctx, records)
		if err == nil {
			return s.publishResult(ctx, key, msg, result)
		}
		// An interrupted prediction says nothing about the message; leave
		// its offset unstored so it is scored again.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.count(ctx, "interrupted")
			return fmt.Errorf("scoring %s@%d interrupted: %w", msg.Topic, msg.Offset, err)
		}
	}
	return s.publishDeadLetter(ctx, key, msg, err)
}

func (s *Scorer) publishResult(ctx context.Context, key []byte, msg kafka.Message, result *prediction.Result) error {
	value, err := json.Marshal(result)
	if err != nil {
		return s.publishDeadLetter(ctx, key, msg, err)
	}
	if err := s.publisher.Publish(ctx, s.topics.Output, key, value); err != nil {
		s.count(ctx, "publish_failed")
		return fmt.Errorf("failed to publish result: %w", err)
	}

	s.count(ctx, "scored")
	if flagged := result.Flagged(); flagged > 0 {
		log.Infof("[Scorer] %s@%d: %d of %d records flagged", msg.Topic, msg.Offset, flagged, len(result.Records))
	}
	return nil
}

func (s *Scorer) publishDeadLetter(ctx context.Context, key []byte, msg kafka.Message, cause error) error {
	payload := prediction.PayloadFor(cause)
	dl := DeadLetter{
		Error:     payload.Error,
		Message:   payload.Message,
		Cause:     payload.Details,
		Details:   string(msg.Value),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	}
	value, err := json.Marshal(dl)
	if err != nil {
		return err
	}

	log.Warnf("[Scorer] %s@%d rejected: %v", msg.Topic, msg.Offset, cause)
	if err := s.publisher.Publish(ctx, s.topics.DLQ, key, value); err != nil {
		s.count(ctx, "publish_failed")
		return fmt.Errorf("failed to publish dead letter: %w", err)
	}
	s.count(ctx, "dead_lettered")
	return nil
}

func (s *Scorer) count(ctx context.Context, outcome string) {
	streamMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
