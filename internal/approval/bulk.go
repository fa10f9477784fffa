package approval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/domain/workflow"
)

// ItemState tracks one record through a bulk run
type ItemState string

const (
	ItemPending   ItemState = "PENDING"
	ItemInFlight  ItemState = "IN_FLIGHT"
	ItemCommitted ItemState = "COMMITTED"
	ItemFailed    ItemState = "FAILED"
)

// BulkItem is the per-record outcome of a bulk run
type BulkItem struct {
	ID     string
	State  ItemState
	Reason string
}

// BulkRequest describes the action applied to every selected record
type BulkRequest struct {
	Trigger      workflow.Trigger
	Reason       string
	SignatureURL string
	Target       *entity.Employee
}

// BatchResult aggregates a bulk run. Committed records stay committed even
// when the run aborts; there is no rollback.
type BatchResult struct {
	Items []BulkItem
}

// CommittedIDs returns the ids that were written successfully
func (r *BatchResult) CommittedIDs() []string {
	var ids []string
	for _, item := range r.Items {
		if item.State == ItemCommitted {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// FailedItems returns the items whose write failed, with their reasons
func (r *BatchResult) FailedItems() []BulkItem {
	var failed []BulkItem
	for _, item := range r.Items {
		if item.State == ItemFailed {
			failed = append(failed, item)
		}
	}
	return failed
}

// SkippedIDs returns the ids never attempted because the run aborted
func (r *BatchResult) SkippedIDs() []string {
	var ids []string
	for _, item := range r.Items {
		if item.State == ItemPending {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Err summarizes the run: nil when every record committed
func (r *BatchResult) Err() error {
	failed := len(r.FailedItems())
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("bulk run aborted: %d committed, %d failed, %d skipped of %d",
		len(r.CommittedIDs()), failed, len(r.SkippedIDs()), len(r.Items))
}

// Bulk applies one action to the selection, strictly sequentially and in
// selection order, pausing between writes to respect the store's rate
// ceiling. The run aborts on the first failure; records already committed
// are not rolled back and the remaining records are left untouched.
func (s *Service) Bulk(ctx context.Context, approvals []*entity.Approval, actor *entity.Employee, req BulkRequest) *BatchResult {
	result := &BatchResult{Items: make([]BulkItem, len(approvals))}
	for i, a := range approvals {
		result.Items[i] = BulkItem{ID: a.ID, State: ItemPending}
	}

	s.logger.Info("Bulk run started",
		zap.String("trigger", string(req.Trigger)),
		zap.Int("selection_size", len(approvals)),
		zap.String("actor", actor.Email))

	for i, a := range approvals {
		result.Items[i].State = ItemInFlight

		if err := s.execute(ctx, a, actor, req); err != nil {
			result.Items[i].State = ItemFailed
			result.Items[i].Reason = err.Error()
			s.logger.Warn("Bulk run aborted on failed record",
				zap.String("approval_id", a.ID),
				zap.Int("position", i),
				zap.Error(err))
			break
		}

		result.Items[i].State = ItemCommitted

		if s.throttle > 0 && i < len(approvals)-1 {
			select {
			case <-ctx.Done():
				result.Items[i+1].State = ItemFailed
				result.Items[i+1].Reason = ctx.Err().Error()
				return result
			case <-time.After(s.throttle):
			}
		}
	}

	s.logger.Info("Bulk run finished",
		zap.Int("committed", len(result.CommittedIDs())),
		zap.Int("failed", len(result.FailedItems())),
		zap.Int("skipped", len(result.SkippedIDs())))
	return result
}

func (s *Service) execute(ctx context.Context, a *entity.Approval, actor *entity.Employee, req BulkRequest) error {
	switch req.Trigger {
	case workflow.TriggerApprove:
		return s.Approve(ctx, a, actor, req.SignatureURL)
	case workflow.TriggerReject:
		return s.Reject(ctx, a, actor, req.Reason)
	case workflow.TriggerDelay:
		return s.Delay(ctx, a, actor, req.Reason)
	case workflow.TriggerTransfer:
		return s.Transfer(ctx, a, actor, req.Target)
	default:
		return fmt.Errorf("unknown bulk trigger %q", req.Trigger)
	}
}
