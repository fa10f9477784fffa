package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/approval"
	"github.com/paysign/signoff/internal/attachment"
	"github.com/paysign/signoff/internal/auth"
	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/domain/workflow"
	"github.com/paysign/signoff/internal/export"
	"github.com/paysign/signoff/internal/history"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/metrics"
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
	"github.com/paysign/signoff/internal/view"
)

// Joiner fetches and joins the remote dataset
type Joiner interface {
	ListAssignedApprovals(ctx context.Context, employeeName string) ([]*entity.Approval, error)
	BuildDataset(ctx context.Context, approvals []*entity.Approval) (*join.Dataset, error)
	ResolveDetail(ctx context.Context, approval *entity.Approval) (*join.Detail, error)
}

// Actions executes workflow transitions
type Actions interface {
	Approve(ctx context.Context, a *entity.Approval, actor *entity.Employee, signatureURL string) error
	Reject(ctx context.Context, a *entity.Approval, actor *entity.Employee, reason string) error
	Delay(ctx context.Context, a *entity.Approval, actor *entity.Employee, reason string) error
	Transfer(ctx context.Context, a *entity.Approval, actor *entity.Employee, target *entity.Employee) error
	TransferCandidates(ctx context.Context, a *entity.Approval) ([]*entity.Employee, error)
	AssignMilestone(ctx context.Context, a *entity.Approval, p *entity.Payment, m *entity.Milestone) error
	Bulk(ctx context.Context, approvals []*entity.Approval, actor *entity.Employee, req approval.BulkRequest) *approval.BatchResult
}

// Authenticator verifies login credentials
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*entity.Employee, error)
}

// Summarizer generates the optional detail briefing
type Summarizer interface {
	Summarize(ctx context.Context, detail *join.Detail) (string, error)
}

// HistoryReader reads the local action log
type HistoryReader interface {
	ListByApproval(ctx context.Context, approvalID string, limit int) ([]history.Entry, error)
}

const historyLimit = 20

// Handlers implements the HTTP API
type Handlers struct {
	joiner     Joiner
	actions    Actions
	login      Authenticator
	tokens     *auth.TokenManager
	sessions   *auth.Registry
	viewer     *attachment.Viewer
	exporter   *export.Exporter
	summarizer Summarizer
	hist       HistoryReader
	normalizer *schema.Normalizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewHandlers wires the API handlers. summarizer and hist may be nil; the
// corresponding response fields are then simply absent.
func NewHandlers(
	joiner Joiner,
	actions Actions,
	login Authenticator,
	tokens *auth.TokenManager,
	sessions *auth.Registry,
	viewer *attachment.Viewer,
	exporter *export.Exporter,
	summarizer Summarizer,
	hist HistoryReader,
	normalizer *schema.Normalizer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		joiner:     joiner,
		actions:    actions,
		login:      login,
		tokens:     tokens,
		sessions:   sessions,
		viewer:     viewer,
		exporter:   exporter,
		summarizer: summarizer,
		hist:       hist,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger,
	}
}

// Login verifies credentials, opens a session and returns its token
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	employee, err := h.login.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("Login failed on store error", zap.Error(err))
		respondError(c, http.StatusBadGateway, "could not reach the record store")
		return
	}

	token, sessionID, err := h.tokens.Issue(employee.Email, employee.Name)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "failed to open session")
		return
	}
	h.sessions.Put(sessionID, employee)

	respondOK(c, http.StatusOK, loginResponse{
		Token: token,
		Employee: employeeDTO{
			ID:         employee.ID,
			Name:       employee.Name,
			Email:      employee.Email,
			Department: employee.Department,
		},
	})
}

// Logout ends the session
func (h *Handlers) Logout(c *gin.Context) {
	session := sessionFrom(c)
	h.sessions.Delete(session.ID)
	respondOK(c, http.StatusOK, gin.H{"ended": true})
}

// ListApprovals renders the visible list. Query params bucket, project,
// supplier and mode update the view state; refresh=1 forces a refetch.
func (h *Handlers) ListApprovals(c *gin.Context) {
	session := sessionFrom(c)

	dataset, err := h.ensureDataset(c.Request.Context(), session, c.Query("refresh") == "1")
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	state := session.UpdateState(func(s view.State) view.State {
		if bucket := c.Query("bucket"); bucket != "" && view.Bucket(bucket) != s.Bucket {
			s = s.WithBucket(view.Bucket(bucket))
		}
		if project, ok := c.GetQuery("project"); ok && project != s.Project {
			s = s.WithProject(project)
		}
		if supplier, ok := c.GetQuery("supplier"); ok && supplier != s.Supplier {
			s = s.WithSupplier(supplier)
		}
		return s
	})

	respondOK(c, http.StatusOK, h.renderList(dataset, state))
}

// SetViewMode toggles between card and table presentation
func (h *Handlers) SetViewMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "mode is required")
		return
	}
	mode := view.Mode(req.Mode)
	if mode != view.ModeCards && mode != view.ModeTable {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("unknown view mode %q", req.Mode))
		return
	}

	session := sessionFrom(c)
	state := session.UpdateState(func(s view.State) view.State {
		return s.WithMode(mode)
	})
	respondOK(c, http.StatusOK, gin.H{"mode": string(state.Mode), "selection_size": state.SelectionSize()})
}

// ToggleSelect flips one approval's selection membership
func (h *Handlers) ToggleSelect(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "id is required")
		return
	}

	session := sessionFrom(c)
	state := session.UpdateState(func(s view.State) view.State {
		return s.ToggleSelect(req.ID)
	})
	respondOK(c, http.StatusOK, gin.H{
		"selected":       state.Selected(req.ID),
		"selection_size": state.SelectionSize(),
	})
}

// ToggleSelectAll flips between an empty selection and all visible ids
func (h *Handlers) ToggleSelectAll(c *gin.Context) {
	session := sessionFrom(c)

	dataset, err := h.ensureDataset(c.Request.Context(), session, false)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	state := session.UpdateState(func(s view.State) view.State {
		visible := s.Visible(dataset.Approvals, dataset.PaymentsByID)
		ids := make([]string, 0, len(visible))
		for _, a := range visible {
			ids = append(ids, a.ID)
		}
		return s.ToggleSelectAll(ids)
	})
	respondOK(c, http.StatusOK, gin.H{"selection_size": state.SelectionSize()})
}

// GetApproval renders the detail view; summary=1 adds the generated briefing
func (h *Handlers) GetApproval(c *gin.Context) {
	session := sessionFrom(c)
	ctx := c.Request.Context()

	dataset, a, ok := h.findApproval(c, session)
	if !ok {
		return
	}

	detail, err := h.joiner.ResolveDetail(ctx, a)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	var entries []history.Entry
	if h.hist != nil {
		entries, err = h.hist.ListByApproval(ctx, a.ID, historyLimit)
		if err != nil {
			h.logger.Warn("Failed to load action history", zap.String("approval_id", a.ID), zap.Error(err))
			entries = nil
		}
	}

	summary := ""
	if h.summarizer != nil && c.Query("summary") == "1" {
		summary, err = h.summarizer.Summarize(ctx, detail)
		if err != nil {
			h.logger.Warn("Summary generation failed", zap.String("approval_id", a.ID), zap.Error(err))
			summary = ""
		}
	}

	respondOK(c, http.StatusOK, h.renderDetail(detail, dataset, session.State(), entries, summary))
}

// TransferCandidates lists the employees an approval can be handed to
func (h *Handlers) TransferCandidates(c *gin.Context) {
	session := sessionFrom(c)

	_, a, ok := h.findApproval(c, session)
	if !ok {
		return
	}

	candidates, err := h.actions.TransferCandidates(c.Request.Context(), a)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	dtos := make([]employeeDTO, 0, len(candidates))
	for _, candidate := range candidates {
		dtos = append(dtos, employeeDTO{
			ID:         candidate.ID,
			Name:       candidate.Name,
			Email:      candidate.Email,
			Department: candidate.Department,
		})
	}
	respondOK(c, http.StatusOK, gin.H{"candidates": dtos})
}

// Approve handles POST /api/approvals/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req struct {
		SignatureURL string `json:"signature_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h.runAction(c, workflow.TriggerApprove, func(ctx context.Context, session *auth.Session, a *entity.Approval) error {
		return h.actions.Approve(ctx, a, session.Employee, req.SignatureURL)
	})
}

// Reject handles POST /api/approvals/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h.runAction(c, workflow.TriggerReject, func(ctx context.Context, session *auth.Session, a *entity.Approval) error {
		return h.actions.Reject(ctx, a, session.Employee, req.Reason)
	})
}

// Delay handles POST /api/approvals/:id/delay
func (h *Handlers) Delay(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h.runAction(c, workflow.TriggerDelay, func(ctx context.Context, session *auth.Session, a *entity.Approval) error {
		return h.actions.Delay(ctx, a, session.Employee, req.Reason)
	})
}

// Transfer handles POST /api/approvals/:id/transfer
func (h *Handlers) Transfer(c *gin.Context) {
	var req struct {
		TargetEmail string `json:"target_email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	h.runAction(c, workflow.TriggerTransfer, func(ctx context.Context, session *auth.Session, a *entity.Approval) error {
		target, err := h.resolveTarget(ctx, a, req.TargetEmail)
		if err != nil {
			return err
		}
		return h.actions.Transfer(ctx, a, session.Employee, target)
	})
}

// AssignMilestone handles POST /api/approvals/:id/milestone
func (h *Handlers) AssignMilestone(c *gin.Context) {
	var req struct {
		MilestoneID string `json:"milestone_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "milestone_id is required")
		return
	}

	session := sessionFrom(c)
	ctx := c.Request.Context()

	if err := session.BeginAction(); err != nil {
		respondError(c, http.StatusConflict, "another action is still running")
		return
	}
	defer session.EndAction()

	dataset, a, ok := h.findApproval(c, session)
	if !ok {
		return
	}

	detail, err := h.joiner.ResolveDetail(ctx, a)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	var milestone *entity.Milestone
	for _, m := range detail.Milestones {
		if m.ID == req.MilestoneID {
			milestone = m
			break
		}
	}
	if milestone == nil {
		respondError(c, http.StatusNotFound, "milestone is not a candidate for this approval")
		return
	}

	payment := dataset.PaymentsByID[a.PaymentID]
	if err := h.actions.AssignMilestone(ctx, a, payment, milestone); err != nil {
		h.respondActionError(c, err)
		return
	}

	dataset, err = h.refetch(ctx, session)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.renderList(dataset, session.State()))
}

// BulkAction applies one trigger to the whole selection
func (h *Handlers) BulkAction(c *gin.Context) {
	var req struct {
		Trigger      string `json:"trigger" binding:"required"`
		Reason       string `json:"reason"`
		SignatureURL string `json:"signature_url"`
		TargetEmail  string `json:"target_email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "trigger is required")
		return
	}
	trigger := workflow.Trigger(strings.ToUpper(req.Trigger))

	session := sessionFrom(c)
	ctx := c.Request.Context()

	if err := session.BeginAction(); err != nil {
		respondError(c, http.StatusConflict, "another action is still running")
		return
	}
	defer session.EndAction()

	dataset, err := h.ensureDataset(ctx, session, false)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	state := session.State()
	selected := make([]*entity.Approval, 0, state.SelectionSize())
	for _, a := range dataset.Approvals {
		if state.Selected(a.ID) {
			selected = append(selected, a)
		}
	}
	if len(selected) == 0 {
		respondError(c, http.StatusBadRequest, "selection is empty")
		return
	}

	bulkReq := approval.BulkRequest{
		Trigger:      trigger,
		Reason:       req.Reason,
		SignatureURL: req.SignatureURL,
	}
	if trigger == workflow.TriggerTransfer {
		target, err := h.resolveTarget(ctx, selected[0], req.TargetEmail)
		if err != nil {
			h.respondActionError(c, err)
			return
		}
		bulkReq.Target = target
	}

	result := h.actions.Bulk(ctx, selected, session.Employee, bulkReq)
	h.metrics.ObserveAction("BULK_"+string(trigger), result.Err())

	// Selection is consumed by the run; the refetch rebuilds the list.
	session.UpdateState(func(s view.State) view.State {
		return s.WithBucket(s.Bucket)
	})
	if _, err := h.refetch(ctx, session); err != nil {
		h.logger.Warn("Refetch after bulk run failed", zap.Error(err))
	}

	status := http.StatusOK
	if result.Err() != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, Response{
		Success: result.Err() == nil,
		Data:    renderBulk(result),
	})
}

// Export streams the visible list as an Excel workbook
func (h *Handlers) Export(c *gin.Context) {
	session := sessionFrom(c)

	dataset, err := h.ensureDataset(c.Request.Context(), session, false)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}

	state := session.State()
	visible := state.Visible(dataset.Approvals, dataset.PaymentsByID)

	filename := fmt.Sprintf("approvals-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.exporter.Write(c.Writer, visible, dataset); err != nil {
		h.logger.Error("Export failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	respondOK(c, http.StatusOK, gin.H{"status": "ok"})
}

// runAction wraps a single-record workflow action: serializes it on the
// session, resolves the target approval, executes, refetches and responds
// with the rebuilt list.
func (h *Handlers) runAction(c *gin.Context, trigger workflow.Trigger, fn func(ctx context.Context, session *auth.Session, a *entity.Approval) error) {
	session := sessionFrom(c)
	ctx := c.Request.Context()

	if err := session.BeginAction(); err != nil {
		respondError(c, http.StatusConflict, "another action is still running")
		return
	}
	defer session.EndAction()

	_, a, ok := h.findApproval(c, session)
	if !ok {
		return
	}

	err := fn(ctx, session, a)
	h.metrics.ObserveAction(string(trigger), err)
	if err != nil {
		h.respondActionError(c, err)
		return
	}

	dataset, err := h.refetch(ctx, session)
	if err != nil {
		h.respondFetchError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h.renderList(dataset, session.State()))
}

func (h *Handlers) resolveTarget(ctx context.Context, a *entity.Approval, email string) (*entity.Employee, error) {
	if strings.TrimSpace(email) == "" {
		return nil, approval.ErrTransferTargetRequired
	}
	candidates, err := h.actions.TransferCandidates(ctx, a)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if strings.EqualFold(candidate.Email, email) {
			return candidate, nil
		}
	}
	return nil, approval.ErrTransferTargetRequired
}

// findApproval resolves :id against the session dataset, loading it first if
// needed. It writes the error response itself on failure.
func (h *Handlers) findApproval(c *gin.Context, session *auth.Session) (*join.Dataset, *entity.Approval, bool) {
	dataset, err := h.ensureDataset(c.Request.Context(), session, false)
	if err != nil {
		h.respondFetchError(c, err)
		return nil, nil, false
	}

	id := c.Param("id")
	for _, a := range dataset.Approvals {
		if a.ID == id {
			return dataset, a, true
		}
	}
	respondError(c, http.StatusNotFound, "approval not found")
	return nil, nil, false
}

func (h *Handlers) ensureDataset(ctx context.Context, session *auth.Session, force bool) (*join.Dataset, error) {
	if dataset := session.Dataset(); dataset != nil && !force {
		return dataset, nil
	}
	return h.refetch(ctx, session)
}

func (h *Handlers) refetch(ctx context.Context, session *auth.Session) (*join.Dataset, error) {
	approvals, err := h.joiner.ListAssignedApprovals(ctx, session.Employee.Name)
	if err != nil {
		return nil, err
	}
	dataset, err := h.joiner.BuildDataset(ctx, approvals)
	if err != nil {
		return nil, err
	}
	session.SetDataset(dataset)
	return dataset, nil
}

func (h *Handlers) respondFetchError(c *gin.Context, err error) {
	h.logger.Error("Remote fetch failed", zap.Error(err))
	respondError(c, http.StatusBadGateway, "could not reach the record store")
}

func (h *Handlers) respondActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrSignatureRequired),
		errors.Is(err, approval.ErrReasonRequired),
		errors.Is(err, approval.ErrTransferTargetRequired):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition):
		respondError(c, http.StatusConflict, err.Error())
	default:
		var remote *tablestore.RemoteError
		if errors.As(err, &remote) {
			respondError(c, http.StatusBadGateway, remote.Message)
			return
		}
		h.logger.Error("Action failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "action failed")
	}
}
