package server

import (
	"github.com/paysign/signoff/internal/approval"
	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/domain/workflow"
	"github.com/paysign/signoff/internal/history"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/view"
)

type employeeDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

type loginResponse struct {
	Token    string      `json:"token"`
	Employee employeeDTO `json:"employee"`
}

type approvalItemDTO struct {
	ID          string   `json:"id"`
	Serial      string   `json:"serial"`
	Status      string   `json:"status"`
	RawStatus   string   `json:"raw_status"`
	Assignee    string   `json:"assignee"`
	Project     string   `json:"project"`
	Supplier    string   `json:"supplier"`
	Amount      string   `json:"amount"`
	OrderNumber string   `json:"order_number"`
	Description string   `json:"description"`
	Milestone   string   `json:"milestone,omitempty"`
	Selected    bool     `json:"selected"`
	Triggers    []string `json:"triggers"`
}

type listResponse struct {
	Items         []approvalItemDTO `json:"items"`
	Counts        map[string]int    `json:"counts"`
	Bucket        string            `json:"bucket"`
	Project       string            `json:"project,omitempty"`
	Supplier      string            `json:"supplier,omitempty"`
	Mode          string            `json:"mode"`
	SelectionSize int               `json:"selection_size"`
}

type attachmentDTO struct {
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url"`
	OpenURL  string `json:"open_url"`
	IsImage  bool   `json:"is_image"`
}

type budgetDTO struct {
	Original    string `json:"original,omitempty"`
	Updated     string `json:"updated,omitempty"`
	Utilized    string `json:"utilized,omitempty"`
	ThisAccount string `json:"this_account,omitempty"`
	Remaining   string `json:"remaining,omitempty"`
	PercentUsed string `json:"percent_used,omitempty"`
}

type paymentDTO struct {
	ID          string          `json:"id"`
	Project     string          `json:"project,omitempty"`
	Supplier    string          `json:"supplier,omitempty"`
	Amount      string          `json:"amount,omitempty"`
	OrderNumber string          `json:"order_number,omitempty"`
	Description string          `json:"description,omitempty"`
	Attachments []attachmentDTO `json:"attachments,omitempty"`
	Budget      budgetDTO       `json:"budget"`
}

type contractDTO struct {
	ID          string          `json:"id"`
	RecID       string          `json:"rec_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Date        string          `json:"date,omitempty"`
	Sum         string          `json:"sum,omitempty"`
	Paid        string          `json:"paid,omitempty"`
	Balance     string          `json:"balance,omitempty"`
	Attachments []attachmentDTO `json:"attachments,omitempty"`
}

type milestoneDTO struct {
	ID      string `json:"id"`
	Number  string `json:"number,omitempty"`
	Section string `json:"section,omitempty"`
	Text    string `json:"text,omitempty"`
}

type siblingDTO struct {
	ID        string `json:"id"`
	Assignee  string `json:"assignee"`
	RawStatus string `json:"raw_status"`
	OrderKey  int    `json:"order_key"`
}

type historyDTO struct {
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Actor     string `json:"actor"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

type detailResponse struct {
	Approval       approvalItemDTO `json:"approval"`
	RejectReason   string          `json:"reject_reason,omitempty"`
	DelayReason    string          `json:"delay_reason,omitempty"`
	Payment        *paymentDTO     `json:"payment,omitempty"`
	Contract       *contractDTO    `json:"contract,omitempty"`
	Siblings       []siblingDTO    `json:"siblings"`
	CousinPayments []paymentDTO    `json:"cousin_payments,omitempty"`
	Milestones     []milestoneDTO  `json:"milestones,omitempty"`
	History        []historyDTO    `json:"history,omitempty"`
	Summary        string          `json:"summary,omitempty"`
}

type bulkItemDTO struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type bulkResponse struct {
	Items     []bulkItemDTO `json:"items"`
	Committed int           `json:"committed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

func (h *Handlers) renderItem(a *entity.Approval, dataset *join.Dataset, state view.State) approvalItemDTO {
	item := approvalItemDTO{
		ID:        a.ID,
		Serial:    a.Serial,
		Status:    string(a.Status),
		RawStatus: a.RawStatus,
		Assignee:  a.AssigneeName(),
		Milestone: milestoneLabel(a.MilestoneNumber, a.MilestoneText),
		Selected:  state.Selected(a.ID),
		Triggers:  triggerNames(a.Status),
	}
	if payment := dataset.PaymentsByID[a.PaymentID]; payment != nil {
		item.Project = payment.Project
		item.Supplier = payment.Supplier
		item.Amount = h.normalizer.Currency(payment.Amount)
		item.OrderNumber = payment.OrderNumber
		item.Description = payment.Description
	}
	return item
}

func (h *Handlers) renderList(dataset *join.Dataset, state view.State) listResponse {
	visible := state.Visible(dataset.Approvals, dataset.PaymentsByID)

	items := make([]approvalItemDTO, 0, len(visible))
	for _, a := range visible {
		items = append(items, h.renderItem(a, dataset, state))
	}

	counts := make(map[string]int)
	for bucket, n := range view.Counts(dataset.Approvals) {
		counts[string(bucket)] = n
	}

	return listResponse{
		Items:         items,
		Counts:        counts,
		Bucket:        string(state.Bucket),
		Project:       state.Project,
		Supplier:      state.Supplier,
		Mode:          string(state.Mode),
		SelectionSize: state.SelectionSize(),
	}
}

func (h *Handlers) renderPayment(p *entity.Payment) *paymentDTO {
	if p == nil {
		return nil
	}
	return &paymentDTO{
		ID:          p.ID,
		Project:     p.Project,
		Supplier:    p.Supplier,
		Amount:      h.normalizer.Currency(p.Amount),
		OrderNumber: p.OrderNumber,
		Description: p.Description,
		Attachments: h.renderAttachments(p.Attachments),
		Budget: budgetDTO{
			Original:    h.normalizer.Currency(p.Budget.Original),
			Updated:     h.normalizer.Currency(p.Budget.Updated),
			Utilized:    h.normalizer.Currency(p.Budget.Utilized),
			ThisAccount: h.normalizer.Currency(p.Budget.ThisAccount),
			Remaining:   h.normalizer.Currency(p.Budget.Remaining),
			PercentUsed: h.normalizer.Percent(p.Budget.PercentUsed),
		},
	}
}

func (h *Handlers) renderContract(c *entity.Contract) *contractDTO {
	if c == nil {
		return nil
	}
	return &contractDTO{
		ID:          c.ID,
		RecID:       c.RecID,
		Description: c.Description,
		Date:        c.Date,
		Sum:         h.normalizer.Currency(c.Sum),
		Paid:        h.normalizer.Currency(c.Paid),
		Balance:     h.normalizer.Currency(c.Balance),
		Attachments: h.renderAttachments(c.Attachments),
	}
}

func (h *Handlers) renderAttachments(attachments []entity.Attachment) []attachmentDTO {
	var out []attachmentDTO
	for _, att := range attachments {
		out = append(out, attachmentDTO{
			Filename: att.Filename,
			URL:      att.URL,
			OpenURL:  h.viewer.OpenURL(att.URL),
			IsImage:  h.viewer.IsImage(att.URL),
		})
	}
	return out
}

func (h *Handlers) renderDetail(detail *join.Detail, dataset *join.Dataset, state view.State, entries []history.Entry, summary string) detailResponse {
	a := detail.Approval
	resp := detailResponse{
		Approval:     h.renderItem(a, dataset, state),
		RejectReason: a.RejectReason,
		DelayReason:  a.DelayReason,
		Payment:      h.renderPayment(detail.Payment),
		Contract:     h.renderContract(detail.Contract),
		Summary:      summary,
	}

	for _, sibling := range detail.Siblings {
		resp.Siblings = append(resp.Siblings, siblingDTO{
			ID:        sibling.ID,
			Assignee:  sibling.AssigneeName(),
			RawStatus: sibling.RawStatus,
			OrderKey:  sibling.OrderKey,
		})
	}
	for _, cousin := range detail.CousinPayments {
		if dto := h.renderPayment(cousin); dto != nil {
			resp.CousinPayments = append(resp.CousinPayments, *dto)
		}
	}
	for _, m := range detail.Milestones {
		resp.Milestones = append(resp.Milestones, milestoneDTO{
			ID:      m.ID,
			Number:  m.Number,
			Section: m.Section,
			Text:    m.Text,
		})
	}
	for _, entry := range entries {
		resp.History = append(resp.History, historyDTO{
			Action:    entry.Action,
			Outcome:   entry.Outcome,
			Actor:     entry.ActorEmail,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return resp
}

func renderBulk(result *approval.BatchResult) bulkResponse {
	resp := bulkResponse{
		Committed: len(result.CommittedIDs()),
		Failed:    len(result.FailedItems()),
		Skipped:   len(result.SkippedIDs()),
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, bulkItemDTO{
			ID:     item.ID,
			State:  string(item.State),
			Reason: item.Reason,
		})
	}
	return resp
}

func milestoneLabel(number, text string) string {
	switch {
	case number != "" && text != "":
		return number + " " + text
	case number != "":
		return number
	default:
		return text
	}
}

func triggerNames(status entity.Status) []string {
	triggers := workflow.PermittedTriggers(status)
	names := make([]string, 0, len(triggers))
	for _, t := range triggers {
		names = append(names, string(t))
	}
	return names
}
