package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/messaging/kafka"
)

// initEventPublisher создаёт Kafka-паблишер событий заказов. Без брокеров или
// при ошибке подключения возвращает NoopPublisher: запись заказов от Kafka не зависит.
func initEventPublisher(cfg Config, logger *log.Entry) (domain.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return domain.NoopPublisher{}, func() {}
	}

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without order events")
		return domain.NoopPublisher{}, func() {}
	}

	logger.WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("kafka producer initialized")

	return kafka.NewOrderEventPublisher(producer, cfg.KafkaTopic), func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
			return
		}
		logger.Info("kafka producer closed")
	}
}
