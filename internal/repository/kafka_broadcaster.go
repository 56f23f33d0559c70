package repository

import (
	"context"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	pkgkafka "GreyPulse/pkg/kafka"
)

// KafkaBroadcaster implements Broadcaster on the shared producer.
// Readings are keyed by symbol so per-instrument ordering survives
// partitioning; alerts are keyed by instrument for the same reason.
type KafkaBroadcaster struct {
	producer      *pkgkafka.Producer
	readingsTopic string
	alertsTopic   string
}

func NewKafkaBroadcaster(producer *pkgkafka.Producer, readingsTopic, alertsTopic string) *KafkaBroadcaster {
	return &KafkaBroadcaster{
		producer:      producer,
		readingsTopic: readingsTopic,
		alertsTopic:   alertsTopic,
	}
}

func (b *KafkaBroadcaster) PublishReading(ctx context.Context, r *models.EnrichedReading) error {
	return b.producer.Publish(ctx, b.readingsTopic, []byte(r.Reading.Symbol), r)
}

func (b *KafkaBroadcaster) PublishAlert(ctx context.Context, a *models.Alert) error {
	return b.producer.Publish(ctx, b.alertsTopic, []byte(a.InstrumentID), a)
}

// PublishAlerts publishes a batch in one writer round-trip.
func (b *KafkaBroadcaster) PublishAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i := range alerts {
		msgs[i] = pkgkafka.Message{Key: []byte(alerts[i].InstrumentID), Value: alerts[i]}
	}
	return b.producer.PublishBatch(ctx, b.alertsTopic, msgs)
}

func (b *KafkaBroadcaster) Close() error {
	if b.producer != nil {
		return b.producer.Close()
	}
	return nil
}

var _ repository.Broadcaster = (*KafkaBroadcaster)(nil)
