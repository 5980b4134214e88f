package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/eastgrand/geoinsight/internal/application/insight"
	"github.com/eastgrand/geoinsight/internal/config"
	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
	insighttypes "github.com/eastgrand/geoinsight/pkg/types/insight"
)

var ErrProducerClosed = errors.New(errors.ErrCodeInternal, "kafka producer is closed")

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes insight lifecycle events.  It implements
// insight.EventPublisher; the service treats publishing as fire-and-forget
// and only logs failures.
type Producer struct {
	writer WriterInterface
	logger logging.Logger
	closed atomic.Bool
	clock  func() time.Time
}

var _ insight.EventPublisher = (*Producer)(nil)

// NewProducer builds a Producer over a balanced writer.  The topic is set
// per message, so one writer serves both topics.
func NewProducer(cfg *config.KafkaConfig, log logging.Logger) *Producer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
		MaxAttempts:  maxRetries,
		RequiredAcks: kafka.RequireOne,
	}
	return NewProducerWithWriter(w, log)
}

// NewProducerWithWriter wires an explicit writer; used by tests.
func NewProducerWithWriter(w WriterInterface, log logging.Logger) *Producer {
	return &Producer{writer: w, logger: log.Named("kafka"), clock: time.Now}
}

// InsightCompleted publishes a completion envelope keyed by fingerprint so
// replays of the same query land on one partition.
func (p *Producer) InsightCompleted(ctx context.Context, ins *insighttypes.Insight) error {
	endpoints := make([]string, len(ins.Endpoints))
	for i, ep := range ins.Endpoints {
		endpoints[i] = ep.EndpointID
	}
	event := CompletedEvent{
		InsightID:     ins.ID,
		Fingerprint:   ins.Fingerprint,
		Query:         ins.Query,
		Persona:       ins.Persona,
		Status:        ins.Status,
		Endpoints:     endpoints,
		RecordCount:   len(ins.Records),
		ConfigVersion: ins.ConfigVersion,
		GeneratedAt:   ins.GeneratedAt,
	}
	return p.publish(ctx, TopicInsightCompleted, []byte(ins.Fingerprint), event)
}

// InsightRejected publishes a rejection envelope.
func (p *Producer) InsightRejected(ctx context.Context, queryText, reason string) error {
	event := RejectedEvent{
		Query:      queryText,
		Reason:     reason,
		RejectedAt: p.clock().UTC(),
	}
	return p.publish(ctx, TopicInsightRejected, nil, event)
}

func (p *Producer) publish(ctx context.Context, topic string, key []byte, event interface{}) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	value, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode event")
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  p.clock(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish "+topic)
	}
	p.logger.Debug("event published", logging.String("topic", topic))
	return nil
}

// Close flushes and shuts the writer down.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
