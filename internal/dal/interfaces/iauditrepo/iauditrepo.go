package iauditrepo

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
)

// IAuditorRepository is interface for auditor repository.
type IAuditorRepository interface {
	LogOrderEvents(ctx context.Context, events []auditlog.OrderEvent) error
}

// IAuditLogRepository stores consumed order events. Saving an event id that is
// already stored is not an error; the returned count excludes such duplicates.
type IAuditLogRepository interface {
	SaveOrderEvents(ctx context.Context, events []auditlog.OrderEvent) (int64, error)
}
