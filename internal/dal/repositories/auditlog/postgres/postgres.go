package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
)

// AuditLogRepository stores consumed order events in order_audit_log.
type AuditLogRepository struct {
	conn postgres.Conn
}

func NewAuditLogRepository(conn postgres.Conn) *AuditLogRepository {
	return &AuditLogRepository{
		conn: conn,
	}
}

// SaveOrderEvents bulk inserts the events. Redelivered events are skipped by
// their event id, so the count is the number of new rows.
func (r *AuditLogRepository) SaveOrderEvents(ctx context.Context, events []auditlog.OrderEvent) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	builder := sq.Insert("order_audit_log").
		Columns(
			"event_id",
			"event_type",
			"order_id",
			"branch_id",
			"account_id",
			"actor_id",
			"previous_status",
			"order_status",
			"total_cents",
			"occurred_at",
		).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		PlaceholderFormat(sq.Dollar)

	for _, event := range events {
		builder = builder.Values(
			event.ID,
			string(event.Type),
			event.OrderID,
			event.BranchID,
			event.AccountID,
			event.ActorID,
			event.PreviousStatus,
			event.OrderStatus,
			event.TotalCents,
			event.OccurredAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build audit log insert query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audit log entries: %w", err)
	}

	return tag.RowsAffected(), nil
}
