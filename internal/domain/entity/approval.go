package entity

import (
	"time"

	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Approval is a per-employee sign-off record tied to a Payment
type Approval struct {
	ID          string
	CreatedTime time.Time
	// RawStatus is the status cell as stored; Status is its collapse. The
	// two are kept apart because the view layer excludes empty raw status
	// while rendering unknown non-empty values as Unknown.
	RawStatus    string
	Status       Status
	Assignee     schema.Value
	OrderKey     int
	Serial       string
	RejectReason string
	DelayReason  string
	// PaymentID and ContractRef are the first entries of their link cells;
	// link fields store heterogeneous reference forms (record id or RecID),
	// so ContractRef must be matched against both during joining.
	PaymentID        string
	ContractRef      string
	SignatureURL     string
	MilestoneNumber  string
	MilestoneSection string
	MilestoneText    string
}

// NewApproval parses an approval record through the schema map
func NewApproval(record *tablestore.Record, fields schema.FieldMap, statuses StatusSet) *Approval {
	rawStatus := fields.ResolveString(record, "approvalStatus")

	return &Approval{
		ID:               record.ID,
		CreatedTime:      record.CreatedTime,
		RawStatus:        rawStatus,
		Status:           statuses.Collapse(rawStatus),
		Assignee:         fields.ResolveValue(record, "approvalAssignee"),
		OrderKey:         schema.OrderNumber(fields.Resolve(record, "approvalOrder")),
		Serial:           fields.ResolveString(record, "approvalSerial"),
		RejectReason:     fields.ResolveString(record, "approvalRejectReason"),
		DelayReason:      fields.ResolveString(record, "approvalDelayReason"),
		PaymentID:        firstRef(fields.ResolveValue(record, "approvalPaymentLink")),
		ContractRef:      firstRef(fields.ResolveValue(record, "approvalContractLink")),
		SignatureURL:     fields.ResolveString(record, "approvalSignature"),
		MilestoneNumber:  fields.ResolveString(record, "approvalMilestoneNumber"),
		MilestoneSection: fields.ResolveString(record, "approvalMilestoneSection"),
		MilestoneText:    fields.ResolveString(record, "approvalMilestoneText"),
	}
}

// AssigneeName returns the display name of the assigned employee
func (a *Approval) AssigneeName() string {
	return a.Assignee.DisplayString()
}

// firstRef extracts the first reference from a link cell of unknown shape
func firstRef(v schema.Value) string {
	refs := v.Strings()
	if len(refs) == 0 {
		return ""
	}
	return refs[0]
}
