package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// KafkaPublisher encapsula o writer Kafka e o logger do feed de corridas.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher pro tópico de atualizações de corrida.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if len(brokers) == 0 {
		log.Fatal("kafka brokers not provided")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}

	return &KafkaPublisher{writer: writer, log: log}
}

// Publish serializa a atualização e envia com o RaceID como chave, garantindo
// ordem por corrida dentro da partição.
func (p *KafkaPublisher) Publish(ctx context.Context, u events.RaceUpdate) error {
	value, err := json.Marshal(u)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(u.RaceID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("failed to publish race update", zap.Error(err))
		return err
	}

	p.log.Debug("published race update", zap.String("race_id", u.RaceID), zap.String("status", u.Status))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
