package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"

	"go-account-service/internal/event"
	"go-account-service/internal/model"
)

const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService turns lifecycle events into persisted audit entries and
// serves an account's own history.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) Record(ctx context.Context, e event.Event) error {
	if s == nil {
		return nil
	}

	status := AuditStatusSuccess
	if e.Failed() {
		status = AuditStatusFailure
	}
	occurredAt := e.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return s.store.Log(ctx, model.AuditEntry{
		Action:     string(e.Type),
		AccountID:  e.AccountID,
		Email:      e.Email,
		Status:     status,
		Detail:     e.Detail,
		OccurredAt: occurredAt.UTC(),
	})
}

// Consume records every event published on bus until ctx is cancelled.
// Events already buffered at cancellation are still recorded. The returned
// channel is closed after the subscription has been released.
func (s *AuditService) Consume(ctx context.Context, bus event.Bus) <-chan struct{} {
	events, unsubscribe := bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer unsubscribe()

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				s.recordDetached(ctx, e)
			case <-ctx.Done():
				for {
					select {
					case e, ok := <-events:
						if !ok {
							return
						}
						s.recordDetached(ctx, e)
					default:
						return
					}
				}
			}
		}
	}()

	return done
}

// recordDetached writes e with its own deadline; the write outlives both the
// publishing request and the consumer's context.
func (s *AuditService) recordDetached(ctx context.Context, e event.Event) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Record(writeCtx, e); err != nil {
		slog.Error("failed to record audit entry", "type", e.Type, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if strings.TrimSpace(query.AccountID) == "" {
		return nil, model.Meta{}, oops.Code("VALIDATION").With("field", "accountId").Wrapf(model.ErrValidation, "account id is required")
	}
	return s.store.Query(ctx, query)
}
