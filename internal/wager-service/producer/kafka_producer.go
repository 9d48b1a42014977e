package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do engine (aposta colocada/cancelada,
// corrida liquidada) nos tópicos respectivos.
type KafkaPublisher struct {
	PlacedWriter    *kafka.Writer
	CancelledWriter *kafka.Writer
	SettledWriter   *kafka.Writer
}

func NewKafkaPublisher(placed, cancelled, settled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{PlacedWriter: placed, CancelledWriter: cancelled, SettledWriter: settled}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.PlacedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.WagerID), Value: b})
}

func (p *KafkaPublisher) PublishWagerCancelled(ctx context.Context, e events.WagerCancelled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.CancelledWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.WagerID), Value: b})
}

func (p *KafkaPublisher) PublishRaceSettled(ctx context.Context, e events.RaceSettled) error {
	e.Ts = time.Now()
	b, _ := json.Marshal(e)
	return p.SettledWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.RaceID), Value: b})
}
