package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует доменные события в Kafka
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Partitioner = sarama.NewHashPartitioner
	saramaCfg.Metadata.Retry.Max = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishOrderStatusChanged публикует событие смены статуса заказа.
// Ключом сообщения служит ID заказа, поэтому события одного заказа упорядочены.
func (p *Producer) PublishOrderStatusChanged(data models.OrderStatusChangedData) error {
	event, err := newEvent(models.EventTypeOrderStatusChanged, data)
	if err != nil {
		return err
	}
	return p.publish(p.topics.Orders, data.OrderID, event)
}

// PublishCouponRedeemed публикует событие применения купона
func (p *Producer) PublishCouponRedeemed(data models.CouponRedeemedData) error {
	event, err := newEvent(models.EventTypeCouponRedeemed, data)
	if err != nil {
		return err
	}
	return p.publish(p.topics.Coupons, data.Code, event)
}

func (p *Producer) publish(topic, key string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send event %s to %s: %w", event.Type, topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"topic":      topic,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

// newEvent упаковывает типизированную нагрузку в Event.Data
func newEvent(eventType models.EventType, data interface{}) (models.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Event{}, fmt.Errorf("failed to convert event data: %w", err)
	}

	return models.Event{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      fields,
		Timestamp: time.Now().UTC(),
	}, nil
}

// DecodeData распаковывает Event.Data в типизированную структуру dest.
func DecodeData(event *models.Event, dest interface{}) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}
	return nil
}
