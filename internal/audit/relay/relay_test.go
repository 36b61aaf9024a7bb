package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/platform/metrics"
	"zkworkspace/internal/storage"
	id "zkworkspace/pkg/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func appendEvents(t *testing.T, outbox *storage.InMemoryOutbox, orgID id.OrgID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		leaf := int64(i)
		require.NoError(t, outbox.Append(context.Background(), audit.Event{
			ID:        uuid.New(),
			Action:    audit.ActionMemberEnrolled,
			OrgID:     orgID,
			LeafIndex: &leaf,
			Timestamp: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
		}))
	}
}

func TestFlushPublishesInOrderAndMarks(t *testing.T) {
	ctx := context.Background()
	outbox := storage.NewMemory().Outbox()
	orgID := id.NewOrgID()
	appendEvents(t, outbox, orgID, 5)

	producer := &fakeProducer{}
	m := metrics.New(prometheus.NewRegistry())
	relay := New(outbox, producer, "zkw.audit", WithBatchSize(2), WithMetrics(m))

	n, err := relay.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.OutboxPublished))

	require.Len(t, producer.records, 5)
	for i, r := range producer.records {
		assert.Equal(t, "zkw.audit", r.Topic)
		assert.Equal(t, orgID.String(), string(r.Key))

		var event audit.Event
		require.NoError(t, json.Unmarshal(r.Value, &event))
		require.NotNil(t, event.LeafIndex)
		assert.Equal(t, int64(i), *event.LeafIndex)
		assert.Equal(t, audit.ActionMemberEnrolled, event.Action)
	}

	pending, err := outbox.FetchUnpublished(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err = relay.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushKeepsEntriesWhenProduceFails(t *testing.T) {
	ctx := context.Background()
	outbox := storage.NewMemory().Outbox()
	appendEvents(t, outbox, id.NewOrgID(), 2)

	producer := &fakeProducer{err: errors.New("broker unavailable")}
	relay := New(outbox, producer, "zkw.audit")

	_, err := relay.Flush(ctx)
	require.Error(t, err)

	pending, err := outbox.FetchUnpublished(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	outbox := storage.NewMemory().Outbox()
	appendEvents(t, outbox, id.NewOrgID(), 3)
	producer := &fakeProducer{}
	relay := New(outbox, producer, "zkw.audit", WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	assert.Eventually(t, func() bool { return producer.count() == 3 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
