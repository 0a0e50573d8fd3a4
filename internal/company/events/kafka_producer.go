// Package events publishes company lifecycle events to Kafka and consumes
// them back for cache invalidation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyRegistered EventType = "company_registered"
	CompanyUpdated    EventType = "company_updated"
	CompanyAccepted   EventType = "company_accepted"
	CompanyRejected   EventType = "company_rejected"
	CompanyDeleted    EventType = "company_deleted"
	MetricsSynced     EventType = "metrics_synced"
)

// Event is the message value written to the topic.
type Event struct {
	Type       EventType             `json:"type"`
	CompanyID  uuid.UUID             `json:"company_id"`
	OwnerID    uuid.UUID             `json:"owner_id"`
	Status     models.ApprovalStatus `json:"status"`
	IsVisible  bool                  `json:"is_visible"`
	OccurredAt time.Time             `json:"occurred_at"`
}

func newEvent(eventType EventType, company *models.Company) Event {
	return Event{
		Type:       eventType,
		CompanyID:  company.ID,
		OwnerID:    company.OwnerID,
		Status:     company.Status,
		IsVisible:  company.IsVisible,
		OccurredAt: time.Now().UTC(),
	}
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      chan struct{}
}

// NewProducer creates the topic when missing and starts the send loop.
func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}
	return NewProducerWithWriter(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}, logger, 1000), nil
}

// NewProducerWithWriter starts a producer over an existing writer with a
// queue of the given size.
func NewProducerWithWriter(writer KafkaWriter, logger *zap.Logger, queueSize int) *Producer {
	p := &Producer{
		writer:    writer,
		events:    make(chan Event, queueSize),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

// Produce queues an event without blocking; it is dropped when the queue
// is full.
func (p *Producer) Produce(eventType EventType, company *models.Company) {
	select {
	case p.events <- newEvent(eventType, company):
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("company_id", company.ID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			p.drain()
			return
		}
	}
}

// drain flushes whatever is still queued at close.
func (p *Producer) drain() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		default:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("company_id", event.CompanyID.String()),
		)
		return
	}
	// keyed by company so one company's events stay ordered on a partition
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CompanyID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.CompanyID.String()),
		)
		return
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
