// Package kafka owns the producer client used by the audit outbox worker.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"daftar/internal/platform/config"
)

// Client wraps a franz-go producer bound to the audit topic.
type Client struct {
	kgo   *kgo.Client
	topic string
}

// New connects to the brokers and makes sure the audit topic exists.
// Returns nil if no brokers are configured (Kafka disabled).
func New(ctx context.Context, cfg config.Kafka) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	adm := kadm.NewClient(cl)
	// CreateTopics is idempotent enough for our purposes: an already-exists
	// response is not an error we care about.
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, cfg.AuditTopic); err != nil {
		cl.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}

	return &Client{kgo: cl, topic: cfg.AuditTopic}, nil
}

// Produce publishes one record synchronously. The outbox worker marks rows
// published only after this returns without error.
func (c *Client) Produce(ctx context.Context, key string, value []byte) error {
	rec := &kgo.Record{Topic: c.topic, Key: []byte(key), Value: value}
	if err := c.kgo.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", c.topic, err)
	}
	return nil
}

func (c *Client) Close() {
	c.kgo.Close()
}
