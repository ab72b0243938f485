package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/outbox"
)

const outboxTable = "order_event_outbox"

// OutboxRepository keeps undelivered order events in PostgreSQL.
type OutboxRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewOutboxRepository(conn postgres.Conn) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *OutboxRepository) Park(ctx context.Context, event outbox.ParkedEvent) error {
	query, args, err := r.sb.Insert(outboxTable).
		Columns(
			"event_id",
			"event_type",
			"queue",
			"payload",
			"attempts",
			"max_attempts",
			"last_error",
			"parked_at",
			"next_attempt_at",
		).
		Values(
			event.EventID,
			event.EventType,
			event.Queue,
			event.Payload,
			event.Attempts,
			event.MaxAttempts,
			event.LastError,
			event.ParkedAt,
			event.NextAttemptAt,
		).
		Suffix("ON CONFLICT (event_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to park order event %s: %w", event.EventID, err)
	}

	return nil
}

// Due skips exhausted events; they stay in the table for inspection.
func (r *OutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]outbox.ParkedEvent, error) {
	query, args, err := r.sb.Select(
		"id",
		"event_id",
		"event_type",
		"queue",
		"payload",
		"attempts",
		"max_attempts",
		"last_error",
		"parked_at",
		"next_attempt_at",
	).
		From(outboxTable).
		Where(sq.LtOrEq{"next_attempt_at": now}).
		Where("attempts < max_attempts").
		OrderBy("next_attempt_at", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due order events: %w", err)
	}
	defer rows.Close()

	events := make([]outbox.ParkedEvent, 0, limit)
	for rows.Next() {
		var e outbox.ParkedEvent
		if err := rows.Scan(
			&e.ID,
			&e.EventID,
			&e.EventType,
			&e.Queue,
			&e.Payload,
			&e.Attempts,
			&e.MaxAttempts,
			&e.LastError,
			&e.ParkedAt,
			&e.NextAttemptAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan parked order event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due order events: %w", err)
	}

	return events, nil
}

func (r *OutboxRepository) Release(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(outboxTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release parked event %d: %w", id, err)
	}

	return nil
}

func (r *OutboxRepository) Reschedule(ctx context.Context, id int64, attempts int, lastError string, next time.Time) error {
	query, args, err := r.sb.Update(outboxTable).
		SetMap(map[string]any{
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": next,
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build outbox update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reschedule parked event %d: %w", id, err)
	}

	return nil
}
