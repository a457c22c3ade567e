package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrisconley/auditor-collector/internal/store"
	"github.com/chrisconley/auditor-collector/specs"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaDeliverer produces encoded records keyed by record id.
type KafkaDeliverer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaDeliverer creates a producer for topic. opts are appended to the
// defaults and may override them.
func NewKafkaDeliverer(brokers []string, topic string, timeout time.Duration, opts ...kgo.Opt) (*KafkaDeliverer, error) {
	client, err := kgo.NewClient(append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RecordDeliveryTimeout(timeout),
	}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaDeliverer{client: client, topic: topic}, nil
}

func (d *KafkaDeliverer) Name() string { return "kafka" }

func (d *KafkaDeliverer) Deliver(ctx context.Context, record specs.RecordSpec) Outcome {
	data, err := store.Encode(record)
	if err != nil {
		return Rejected("%v", err)
	}

	err = d.client.ProduceSync(ctx, &kgo.Record{Key: []byte(record.RecordID), Value: data}).FirstErr()
	return kafkaOutcome(d.topic, err)
}

// kafkaOutcome maps a produce error. Errors about the record itself will not
// go away on retry; everything else might.
func kafkaOutcome(topic string, err error) Outcome {
	switch {
	case err == nil:
		return Acknowledged()
	case errors.Is(err, kerr.MessageTooLarge), errors.Is(err, kerr.InvalidRecord), errors.Is(err, kerr.CorruptMessage):
		return Rejected("%s: %v", topic, err)
	default:
		return Unreachable("%s: %v", topic, err)
	}
}

func (d *KafkaDeliverer) Close() error {
	d.client.Close()
	return nil
}
