package auditsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
)

type fakeAuditLog struct {
	seen  map[string]bool
	saved []auditlog.OrderEvent
	err   error
}

func (f *fakeAuditLog) SaveOrderEvents(_ context.Context, events []auditlog.OrderEvent) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}

	var n int64
	for _, e := range events {
		if f.seen[e.ID] {
			continue
		}
		f.seen[e.ID] = true
		f.saved = append(f.saved, e)
		n++
	}

	return n, nil
}

const validEvent = `{"id":"evt-1","type":"order.status_changed","order_id":"ord-1","branch_id":"br-1",` +
	`"previous_status":"pending","order_status":"preparing","total_cents":1250,"occurred_at":"2026-03-01T10:00:00Z"}`

func TestProcessOrderEventStoresOnce(t *testing.T) {
	repo := &fakeAuditLog{}
	svc := MustNewAuditService(WithAuditLogRepository(repo))

	for range 2 {
		event, err := svc.ProcessOrderEvent(context.Background(), []byte(validEvent))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if event.OrderID != "ord-1" || event.TotalCents != 1250 {
			t.Fatalf("unexpected event: %+v", event)
		}
	}

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d events, want 1", len(repo.saved))
	}
	if repo.saved[0].PreviousStatus != "pending" {
		t.Fatalf("previous status = %q", repo.saved[0].PreviousStatus)
	}
}

func TestProcessOrderEventRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"id":`},
		{"missing id", `{"type":"order.created","order_id":"o","occurred_at":"2026-03-01T10:00:00Z"}`},
		{"missing order", `{"id":"e","type":"order.created","occurred_at":"2026-03-01T10:00:00Z"}`},
		{"missing time", `{"id":"e","type":"order.created","order_id":"o"}`},
		{"unknown type", `{"id":"e","type":"order.paid","order_id":"o","occurred_at":"2026-03-01T10:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeAuditLog{}
			svc := MustNewAuditService(WithAuditLogRepository(repo))

			_, err := svc.ProcessOrderEvent(context.Background(), []byte(tt.payload))
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(repo.saved) != 0 {
				t.Fatalf("nothing should be stored")
			}
		})
	}
}

func TestProcessOrderEventStorageFailure(t *testing.T) {
	svc := MustNewAuditService(WithAuditLogRepository(&fakeAuditLog{err: errors.New("connection reset")}))

	_, err := svc.ProcessOrderEvent(context.Background(), []byte(validEvent))
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.KindOf(err) != "" {
		t.Fatalf("storage failures must not be classified, got %q", apperr.KindOf(err))
	}
}
