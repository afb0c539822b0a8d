package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/Simplici0/parcelrate/internal/logging"
)

// ErrCircuitOpen is returned while the broker is considered unavailable.
var ErrCircuitOpen = errors.New("kafka notifier: circuit breaker open")

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BreakerConfig tunes the circuit breaker in front of the writer.
type BreakerConfig struct {
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	FailureThreshold      uint32
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32
}

// DefaultBreakerConfig trips after five consecutive failures, or when half
// of at least ten requests failed.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:           5,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
}

// KafkaNotifier publishes JSON events keyed by tracking number.
type KafkaNotifier struct {
	writer  MessageWriter
	breaker *gobreaker.CircuitBreaker
	rec     Recorder
	log     *slog.Logger
}

// NewKafkaWriter builds a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

func NewKafkaNotifier(w MessageWriter, cfg BreakerConfig, rec Recorder, logger *slog.Logger) *KafkaNotifier {
	log := logging.Component(logger, "events")
	settings := gobreaker.Settings{
		Name:        "kafka-notifier",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if cfg.MinRequestsToTrip > 0 && c.Requests >= cfg.MinRequestsToTrip {
				return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &KafkaNotifier{
		writer:  w,
		breaker: gobreaker.NewCircuitBreaker(settings),
		rec:     rec,
		log:     log,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.TrackingNumber),
		Value: payload,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(e.ID)},
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	_, err = n.breaker.Execute(func() (any, error) {
		return nil, n.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrCircuitOpen
	}
	if n.rec != nil {
		n.rec.RecordNotification(e.Type, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s for %s: %w", e.Type, e.TrackingNumber, err)
	}
	return nil
}

// State exposes the breaker state; /healthz reports it.
func (n *KafkaNotifier) State() gobreaker.State {
	return n.breaker.State()
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
