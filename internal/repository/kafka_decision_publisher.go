package repository

import (
	"context"

	"github.com/evandro-godoy/wtnps-finadv/internal/domain/models"
	pkgkafka "github.com/evandro-godoy/wtnps-finadv/pkg/kafka"
)

// KafkaDecisionPublisher forwards final decisions to a Kafka topic, keyed
// by symbol so downstream consumers see per-symbol order.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) *KafkaDecisionPublisher {
	if topic == "" {
		topic = "finadv.decisions"
	}
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, d models.FinalDecisionEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(d.Symbol), decisionPayload{
		Timestamp:   d.Timestamp.UnixMilli(),
		Symbol:      d.Symbol,
		Signal:      d.Signal.String(),
		Confidence:  d.Confidence,
		SetupValid:  d.SetupValid,
		RuleMatched: d.RuleMatched,
		Decision:    d.Decision.String(),
	})
}

func (p *KafkaDecisionPublisher) Close() error {
	return p.producer.Close()
}

type decisionPayload struct {
	Timestamp   int64   `json:"ts"`
	Symbol      string  `json:"symbol"`
	Signal      string  `json:"signal"`
	Confidence  float64 `json:"confidence"`
	SetupValid  bool    `json:"setup_valid"`
	RuleMatched string  `json:"rule_matched,omitempty"`
	Decision    string  `json:"decision"`
}
