package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const clientID = "foodorders"

var errProducerNotInitialized = errors.New("kafka producer is not initialized")

// newSaramaConfig настраивает идемпотентную доставку с подтверждением всех реплик.
func newSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	// Идемпотентный producer требует не больше одного запроса в полёте.
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// Producer отправляет события заказов в Kafka синхронно.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

func NewProducer(brokers []string, logger *log.Entry) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	sp, err := sarama.NewSyncProducer(brokers, newSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newProducer(sp, logger), nil
}

func newProducer(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: sp, logger: logger, now: time.Now}
}

// buildMessage кодирует event в JSON. Тип события дублируется в заголовке
// HeaderEventType, потребители фильтруют по нему без разбора тела.
func buildMessage(topic, key string, eventType EventType, event any, at time.Time) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: at,
		Headers:   []sarama.RecordHeader{{Key: []byte(HeaderEventType), Value: []byte(eventType)}},
	}, nil
}

// PublishEvent отправляет event с ключом key. Отменённый ctx проверяется до
// отправки; сама отправка sarama контекст не принимает.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, eventType EventType, event any) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}

	msg, err := buildMessage(topic, key, eventType, event, p.now())
	if err != nil {
		return err
	}

	entry := p.logger.WithFields(log.Fields{"topic": topic, "key": key, "event_type": eventType})
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		entry.WithError(err).Error("failed to send order event")
		return fmt.Errorf("send %s event: %w", eventType, err)
	}
	entry.WithFields(log.Fields{"partition": partition, "offset": offset}).Debug("order event sent")
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
