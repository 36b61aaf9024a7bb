package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"zkworkspace/pkg/requestcontext"
)

// Appender writes an event to the outbox of the unit of work found in ctx.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Publisher enriches events with ids, time, and request correlation, logs them as
// audit lines, and appends them to the outbox.
type Publisher struct {
	outbox Appender
	logger *slog.Logger
}

func NewPublisher(outbox Appender, logger *slog.Logger) *Publisher {
	return &Publisher{outbox: outbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.logger != nil {
		args := []any{
			"event", string(event.Action),
			"org_id", event.OrgID.String(),
			"log_type", "audit",
		}
		if event.LeafIndex != nil {
			args = append(args, "leaf_index", *event.LeafIndex)
		}
		if event.RequestID != "" {
			args = append(args, "request_id", event.RequestID)
		}
		p.logger.InfoContext(ctx, string(event.Action), args...)
	}

	if p.outbox == nil {
		return nil
	}
	if err := p.outbox.Append(ctx, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
