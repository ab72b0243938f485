package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/outbox"
)

// IOutboxRepository stores order events waiting to be republished.
type IOutboxRepository interface {
	// Park stores an event once; parking the same event id again is a no-op.
	Park(ctx context.Context, event outbox.ParkedEvent) error
	// Due returns up to limit events whose next attempt is not after now.
	Due(ctx context.Context, now time.Time, limit int) ([]outbox.ParkedEvent, error)
	// Release drops an event that has been delivered.
	Release(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, attempts int, lastError string, next time.Time) error
}
