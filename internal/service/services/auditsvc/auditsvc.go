// Package auditsvc records order lifecycle events consumed from the audit queue.
package auditsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/corray333/coffeeshop/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	postgresrepo "github.com/corray333/coffeeshop/internal/dal/repositories/auditlog/postgres"
	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"go.opentelemetry.io/otel"
)

// AuditService is a service for storing consumed order events.
type AuditService struct {
	auditLogRepo iauditrepo.IAuditLogRepository
}

// option is a function that configures the AuditService.
type option func(*AuditService)

// MustNewAuditService creates a new AuditService.
func MustNewAuditService(opts ...option) *AuditService {
	s := &AuditService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.auditLogRepo == nil {
		panic("auditsvc: audit log repository is required")
	}

	return s
}

// WithPostgresClient stores events in the order_audit_log table.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *AuditService) {
		s.auditLogRepo = postgresrepo.NewAuditLogRepository(pgClient.Pool())
	}
}

// WithAuditLogRepository sets the audit log repository for the AuditService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAuditLogRepository(repo iauditrepo.IAuditLogRepository) option {
	return func(s *AuditService) {
		s.auditLogRepo = repo
	}
}

// ProcessOrderEvent decodes and stores one event. Malformed payloads are
// Validation errors and will never succeed on retry.
func (s *AuditService) ProcessOrderEvent(ctx context.Context, payload []byte) (*auditlog.OrderEvent, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "AuditService.ProcessOrderEvent")
	defer span.End()

	var event auditlog.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Validation("malformed order event: %v", err)
	}
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	saved, err := s.auditLogRepo.SaveOrderEvents(ctx, []auditlog.OrderEvent{event})
	if err != nil {
		return nil, fmt.Errorf("failed to save order event: %w", err)
	}

	if saved == 0 {
		slog.Debug("Order event already recorded", "event_id", event.ID, "order_id", event.OrderID)
	} else {
		slog.Info("Order event recorded",
			"event_id", event.ID,
			"event_type", event.Type,
			"order_id", event.OrderID,
		)
	}

	return &event, nil
}

func validateEvent(event auditlog.OrderEvent) error {
	switch {
	case event.ID == "":
		return apperr.Validation("order event has no id")
	case event.OrderID == "":
		return apperr.Validation("order event %s has no order id", event.ID)
	case event.OccurredAt.IsZero():
		return apperr.Validation("order event %s has no timestamp", event.ID)
	}

	switch event.Type {
	case auditlog.EventOrderCreated, auditlog.EventOrderStatusChanged,
		auditlog.EventOrderItemsReplaced, auditlog.EventOrderRemoved:
		return nil
	default:
		return apperr.Validation("order event %s has unknown type %q", event.ID, event.Type)
	}
}
