package producer

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Reachvip123/telegram-store-bot/internal/service"

	"github.com/segmentio/kafka-go"
)

// StoreProducer publishes buyer messages and operator alerts to Kafka.
// The chat bot frontend consumes the messages topic and relays each
// payload to the right chat; keys are chat ids so one buyer's messages
// stay ordered within a partition.
type StoreProducer struct {
	messages *kafka.Writer
	alerts   *kafka.Writer
}

func NewStoreProducer(brokers []string, messagesTopic, alertsTopic string) *StoreProducer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	return &StoreProducer{
		messages: newWriter(messagesTopic),
		alerts:   newWriter(alertsTopic),
	}
}

func (p *StoreProducer) Send(ctx context.Context, msg service.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.messages.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.ChatID, 10)),
		Value: value,
	})
}

type OperatorAlert struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

func (p *StoreProducer) NotifyOperator(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(OperatorAlert{Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.alerts.WriteMessages(ctx, kafka.Message{
		Key:   []byte("operator"),
		Value: value,
	})
}

func (p *StoreProducer) Close() error {
	if err := p.messages.Close(); err != nil {
		p.alerts.Close()
		return err
	}
	return p.alerts.Close()
}
