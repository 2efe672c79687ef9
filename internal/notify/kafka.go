package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaNotifier publishes notification events to a topic consumed by the
// push-delivery service. Publishing happens outside any store transaction.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

type notificationEvent struct {
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaNotifier{producer: producer, topic: topic}, nil
}

func (n *KafkaNotifier) Notify(_ context.Context, userID, title, body string) error {
	payload, err := json.Marshal(notificationEvent{
		UserID: userID,
		Title:  title,
		Body:   body,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
