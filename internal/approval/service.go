// Package approval executes sign-off transitions against the remote store:
// single approve/reject/delay/transfer actions, milestone assignment, and
// sequential bulk runs over a selection set.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/domain/workflow"
	"github.com/paysign/signoff/internal/history"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Validation failures. The UI layer is expected to prevent these by
// disabling the confirm control; they are a backstop, not the primary UX.
var (
	ErrSignatureRequired      = errors.New("signature image is required")
	ErrReasonRequired         = errors.New("reason text is required")
	ErrTransferTargetRequired = errors.New("transfer target is required")
)

// Store is the subset of the tablestore client the service needs
type Store interface {
	List(ctx context.Context, table, formula string) ([]tablestore.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (*tablestore.Record, error)
}

// ActionLog records executed transitions for the local audit trail
type ActionLog interface {
	Record(ctx context.Context, entry history.Entry) error
}

// Service executes approval workflow actions
type Service struct {
	store     Store
	tables    join.Tables
	fields    schema.FieldMap
	statuses  entity.StatusSet
	stamper   *Stamper
	actionLog ActionLog
	throttle  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates the workflow action service
func NewService(
	store Store,
	tables join.Tables,
	fields schema.FieldMap,
	statuses entity.StatusSet,
	stamper *Stamper,
	actionLog ActionLog,
	throttle time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:     store,
		tables:    tables,
		fields:    fields,
		statuses:  statuses,
		stamper:   stamper,
		actionLog: actionLog,
		throttle:  throttle,
		now:       time.Now,
		logger:    logger,
	}
}

// Approve signs an approval. A captured signature image is required; a
// certification stamp URL is generated alongside it, and both reason fields
// are cleared.
func (s *Service) Approve(ctx context.Context, a *entity.Approval, actor *entity.Employee, signatureURL string) error {
	if strings.TrimSpace(signatureURL) == "" {
		return ErrSignatureRequired
	}

	next, err := workflow.Next(a.Status, workflow.TriggerApprove)
	if err != nil {
		return err
	}

	serial := a.Serial
	if serial == "" {
		serial = a.ID
	}
	stampURL := s.stamper.URL(actor.Name, actor.Email, serial, s.now())

	fields := map[string]any{
		s.fields.Name("approvalStatus"): s.statuses.Canonical(next),
		s.fields.Name("approvalSignature"): []map[string]any{
			{"url": signatureURL},
			{"url": stampURL},
		},
		s.fields.Name("approvalRejectReason"): "",
		s.fields.Name("approvalDelayReason"):  "",
	}

	if _, err := s.store.Update(ctx, s.tables.Approvals, a.ID, fields); err != nil {
		s.record(ctx, a.ID, actor, workflow.TriggerApprove, history.OutcomeFailed, err.Error())
		return fmt.Errorf("approve %s: %w", a.ID, err)
	}

	s.patchMirror(a, next, "", "")
	a.SignatureURL = signatureURL
	s.record(ctx, a.ID, actor, workflow.TriggerApprove, history.OutcomeCommitted, "")
	s.logger.Info("Approval signed",
		zap.String("approval_id", a.ID),
		zap.String("actor", actor.Email))
	return nil
}

// Reject moves an approval to Rejected with the given reason, clearing any
// delay reason.
func (s *Service) Reject(ctx context.Context, a *entity.Approval, actor *entity.Employee, reason string) error {
	return s.applyReasoned(ctx, a, actor, workflow.TriggerReject, reason)
}

// Delay moves an approval to Delayed with the given reason, clearing any
// rejection reason.
func (s *Service) Delay(ctx context.Context, a *entity.Approval, actor *entity.Employee, reason string) error {
	return s.applyReasoned(ctx, a, actor, workflow.TriggerDelay, reason)
}

func (s *Service) applyReasoned(ctx context.Context, a *entity.Approval, actor *entity.Employee, trigger workflow.Trigger, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	next, err := workflow.Next(a.Status, trigger)
	if err != nil {
		return err
	}

	rejectReason, delayReason := "", ""
	if trigger == workflow.TriggerReject {
		rejectReason = reason
	} else {
		delayReason = reason
	}

	fields := map[string]any{
		s.fields.Name("approvalStatus"):       s.statuses.Canonical(next),
		s.fields.Name("approvalRejectReason"): rejectReason,
		s.fields.Name("approvalDelayReason"):  delayReason,
	}

	if _, err := s.store.Update(ctx, s.tables.Approvals, a.ID, fields); err != nil {
		s.record(ctx, a.ID, actor, trigger, history.OutcomeFailed, err.Error())
		return fmt.Errorf("%s %s: %w", strings.ToLower(string(trigger)), a.ID, err)
	}

	s.patchMirror(a, next, rejectReason, delayReason)
	s.record(ctx, a.ID, actor, trigger, history.OutcomeCommitted, reason)
	s.logger.Info("Approval status changed",
		zap.String("approval_id", a.ID),
		zap.String("trigger", string(trigger)),
		zap.String("actor", actor.Email))
	return nil
}

// Transfer reassigns an approval to another employee and restarts the cycle:
// status back to Waiting, both reason fields cleared.
func (s *Service) Transfer(ctx context.Context, a *entity.Approval, actor *entity.Employee, target *entity.Employee) error {
	if target == nil {
		return ErrTransferTargetRequired
	}

	next, err := workflow.Next(a.Status, workflow.TriggerTransfer)
	if err != nil {
		return err
	}

	fields := map[string]any{
		s.fields.Name("approvalStatus"):       s.statuses.Canonical(next),
		s.fields.Name("approvalAssignee"):     map[string]any{"email": target.Email},
		s.fields.Name("approvalRejectReason"): "",
		s.fields.Name("approvalDelayReason"):  "",
	}

	if _, err := s.store.Update(ctx, s.tables.Approvals, a.ID, fields); err != nil {
		s.record(ctx, a.ID, actor, workflow.TriggerTransfer, history.OutcomeFailed, err.Error())
		return fmt.Errorf("transfer %s: %w", a.ID, err)
	}

	s.patchMirror(a, next, "", "")
	a.Assignee = schema.Value{Kind: schema.KindUserRef, Name: target.Name, Email: target.Email}
	s.record(ctx, a.ID, actor, workflow.TriggerTransfer, history.OutcomeCommitted, "transferred to "+target.Email)
	s.logger.Info("Approval transferred",
		zap.String("approval_id", a.ID),
		zap.String("target", target.Email))
	return nil
}

// TransferCandidates fetches, fresh per attempt, the employees sharing the
// current assignee's department, the assignee excluded.
func (s *Service) TransferCandidates(ctx context.Context, a *entity.Approval) ([]*entity.Employee, error) {
	assignee, err := s.findAssignee(ctx, a)
	if err != nil {
		return nil, err
	}
	if assignee == nil || assignee.Department == "" {
		return nil, nil
	}

	formula := tablestore.EqualsFormula(s.fields.Name("employeeDepartment"), assignee.Department)
	records, err := s.store.List(ctx, s.tables.Employees, formula)
	if err != nil {
		return nil, fmt.Errorf("fetch transfer candidates: %w", err)
	}

	var candidates []*entity.Employee
	for _, record := range records {
		rec := record
		employee := entity.NewEmployee(&rec, s.fields)
		if employee.ID == assignee.ID {
			continue
		}
		candidates = append(candidates, employee)
	}
	return candidates, nil
}

func (s *Service) findAssignee(ctx context.Context, a *entity.Approval) (*entity.Employee, error) {
	var formula string
	switch {
	case a.Assignee.Email != "":
		formula = tablestore.EqualsFormula(s.fields.Name("employeeEmail"), a.Assignee.Email)
	case a.AssigneeName() != "":
		formula = tablestore.EqualsFormula(s.fields.Name("employeeName"), a.AssigneeName())
	default:
		return nil, nil
	}

	records, err := s.store.List(ctx, s.tables.Employees, formula)
	if err != nil {
		return nil, fmt.Errorf("resolve current assignee: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return entity.NewEmployee(&records[0], s.fields), nil
}

// AssignMilestone copies the milestone snapshot onto both the payment and
// the approval, and persists the milestone link on the payment. In-memory
// mirrors are updated immediately, independent of the refetch, so the open
// detail view does not flicker.
func (s *Service) AssignMilestone(ctx context.Context, a *entity.Approval, p *entity.Payment, m *entity.Milestone) error {
	if m == nil {
		return fmt.Errorf("assign milestone: no milestone selected")
	}

	if p != nil {
		paymentFields := map[string]any{
			s.fields.Name("paymentMilestoneNumber"):  m.Number,
			s.fields.Name("paymentMilestoneSection"): m.Section,
			s.fields.Name("paymentMilestoneText"):    m.Text,
			s.fields.Name("paymentMilestoneLink"):    []string{m.ID},
		}
		if _, err := s.store.Update(ctx, s.tables.Payments, p.ID, paymentFields); err != nil {
			return fmt.Errorf("assign milestone to payment %s: %w", p.ID, err)
		}
		p.MilestoneNumber = m.Number
		p.MilestoneSection = m.Section
		p.MilestoneText = m.Text
	}

	approvalFields := map[string]any{
		s.fields.Name("approvalMilestoneNumber"):  m.Number,
		s.fields.Name("approvalMilestoneSection"): m.Section,
		s.fields.Name("approvalMilestoneText"):    m.Text,
	}
	if _, err := s.store.Update(ctx, s.tables.Approvals, a.ID, approvalFields); err != nil {
		return fmt.Errorf("assign milestone to approval %s: %w", a.ID, err)
	}
	a.MilestoneNumber = m.Number
	a.MilestoneSection = m.Section
	a.MilestoneText = m.Text

	s.logger.Info("Milestone assigned",
		zap.String("approval_id", a.ID),
		zap.String("milestone_id", m.ID))
	return nil
}

// patchMirror applies the matching local-state patch after a successful
// remote write. The list view is still rebuilt by a full refetch; the mirror
// only keeps an open detail view coherent until then.
func (s *Service) patchMirror(a *entity.Approval, next entity.Status, rejectReason, delayReason string) {
	a.Status = next
	a.RawStatus = s.statuses.Canonical(next)
	a.RejectReason = rejectReason
	a.DelayReason = delayReason
}

func (s *Service) record(ctx context.Context, approvalID string, actor *entity.Employee, trigger workflow.Trigger, outcome, reason string) {
	if s.actionLog == nil {
		return
	}
	entry := history.Entry{
		ApprovalID: approvalID,
		ActorEmail: actor.Email,
		Action:     string(trigger),
		Outcome:    outcome,
		Reason:     reason,
	}
	if err := s.actionLog.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record action log entry",
			zap.String("approval_id", approvalID),
			zap.Error(err))
	}
}
