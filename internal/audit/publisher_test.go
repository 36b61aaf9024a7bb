package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "zkworkspace/pkg/domain"
	"zkworkspace/pkg/requestcontext"
)

type recordingOutbox struct {
	events []Event
	err    error
}

func (r *recordingOutbox) Append(_ context.Context, e Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func TestPublisher_EnrichesAndAppends(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	outbox := &recordingOutbox{}
	var logs bytes.Buffer
	p := NewPublisher(outbox, slog.New(slog.NewJSONHandler(&logs, nil)))

	leaf := int64(4)
	orgID := id.NewOrgID()
	require.NoError(t, p.Emit(ctx, Event{Action: ActionMemberEnrolled, OrgID: orgID, LeafIndex: &leaf}))

	require.Len(t, outbox.events, 1)
	got := outbox.events[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, now, got.Timestamp)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Contains(t, logs.String(), `"log_type":"audit"`)
	assert.Contains(t, logs.String(), `"leaf_index":4`)
	assert.Contains(t, logs.String(), orgID.String())
}

func TestPublisher_PropagatesOutboxFailure(t *testing.T) {
	p := NewPublisher(&recordingOutbox{err: errors.New("disk full")}, nil)
	err := p.Emit(context.Background(), Event{Action: ActionOrgCreated, OrgID: id.NewOrgID()})
	require.Error(t, err)
}
