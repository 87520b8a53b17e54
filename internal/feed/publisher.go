package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/atmx/ledger-engine/internal/ledger"
	"github.com/atmx/ledger-engine/internal/metrics"
	"github.com/atmx/ledger-engine/internal/model"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordEvent is the wire form of a published transaction record.
type RecordEvent struct {
	Type    string                  `json:"type"`
	Balance string                  `json:"balance"`
	Record  model.TransactionRecord `json:"record"`
}

// Publisher forwards committed records to Kafka. Enqueue never blocks the
// ledger: when the buffer is full the event is dropped and counted.
type Publisher struct {
	w      MessageWriter
	queue  chan kafka.Message
	logger *zap.Logger
}

// NewKafkaWriter builds a writer for the events topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           200 * time.Millisecond,
	}
}

func NewPublisher(w MessageWriter, buffer int, logger *zap.Logger) *Publisher {
	return &Publisher{w: w, queue: make(chan kafka.Message, buffer), logger: logger}
}

// Enqueue is a ledger.OnCommit hook.
func (p *Publisher) Enqueue(ev ledger.Event) {
	for _, r := range ev.Records {
		b, err := json.Marshal(RecordEvent{Type: ev.Type, Balance: ev.Balance.String(), Record: r})
		if err != nil {
			p.logger.Error("marshal record event", zap.Error(err))
			continue
		}
		msg := kafka.Message{Key: []byte(r.Symbol), Value: b, Time: r.Timestamp}
		select {
		case p.queue <- msg:
		default:
			metrics.EventsPublished.WithLabelValues("dropped").Inc()
			p.logger.Warn("event queue full, dropping record", zap.String("record_id", r.ID))
		}
	}
}

// Run writes queued events until ctx is cancelled, then flushes what is
// already queued and closes the writer.
func (p *Publisher) Run(ctx context.Context) error {
	defer p.w.Close()
	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case msg := <-p.queue:
					p.write(flushCtx, msg)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Publisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		p.logger.Error("publish record", zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
