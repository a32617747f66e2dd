//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"daftar/internal/platform/config"
	"daftar/internal/platform/kafka"
	"daftar/internal/platform/postgres"
	"daftar/pkg/testutil/containers"
)

func TestWorkerKafkaIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	pg := containers.NewPostgresContainer(t)
	require.NoError(t, postgres.EnsureSchema(ctx, pg.DB))
	store := NewPostgresStore(pg.DB)

	rp := containers.NewRedpandaContainer(t)
	const topic = "daftar.audit.events.test"
	producer, err := kafka.New(ctx, config.Kafka{Brokers: []string{rp.Broker}, AuditTopic: topic})
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	payload, err := json.Marshal(map[string]string{"store_id": uuid.NewString()})
	require.NoError(t, err)
	events := []Event{
		{ID: uuid.New(), Action: ActionStoreCreated, Payload: payload, CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), Action: ActionTransactionApplied, Payload: payload, CreatedAt: time.Now().UTC()},
	}
	for _, ev := range events {
		require.NoError(t, store.Insert(ctx, ev))
	}

	worker := NewWorker(store, producer, slog.New(slog.DiscardHandler), time.Second)
	require.NoError(t, worker.Drain(ctx))

	t.Run("drained events land on the topic", func(t *testing.T) {
		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(rp.Broker),
			kgo.ConsumeTopics(topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		require.NoError(t, err)
		t.Cleanup(consumer.Close)

		pollCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		var got []string
		for len(got) < len(events) {
			fetches := consumer.PollFetches(pollCtx)
			require.NoError(t, fetches.Err())
			fetches.EachRecord(func(rec *kgo.Record) {
				got = append(got, string(rec.Key))
			})
		}
		assert.Contains(t, got, ActionStoreCreated)
		assert.Contains(t, got, ActionTransactionApplied)
	})

	t.Run("drained events are marked published", func(t *testing.T) {
		pending, err := store.ListUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
