package entity

import (
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Attachment is an externally hosted file surfaced for viewing
type Attachment struct {
	URL      string
	Filename string
}

// BudgetUsage is the budget-utilization sub-record carried on a payment.
// Amount cells keep their raw shape; currency normalization happens at
// render time.
type BudgetUsage struct {
	Original    any
	Updated     any
	Utilized    any
	ThisAccount any
	Remaining   any
	PercentUsed any
}

// Payment is a payment request record
type Payment struct {
	ID          string
	Amount      any
	Project     string
	Supplier    string
	Description string
	OrderNumber string
	Attachments []Attachment
	Budget      BudgetUsage
	// Milestone snapshot denormalized onto the payment at assignment time
	MilestoneNumber  string
	MilestoneSection string
	MilestoneText    string
}

// NewPayment parses a payment record through the schema map
func NewPayment(record *tablestore.Record, fields schema.FieldMap) *Payment {
	return &Payment{
		ID:          record.ID,
		Amount:      fields.Resolve(record, "paymentAmount"),
		Project:     fields.ResolveString(record, "paymentProject"),
		Supplier:    fields.ResolveString(record, "paymentSupplier"),
		Description: fields.ResolveString(record, "paymentDescription"),
		OrderNumber: fields.ResolveString(record, "paymentOrderNumber"),
		Attachments: ParseAttachments(fields.Resolve(record, "paymentAttachments")),
		Budget: BudgetUsage{
			Original:    fields.Resolve(record, "budgetOriginal"),
			Updated:     fields.Resolve(record, "budgetUpdated"),
			Utilized:    fields.Resolve(record, "budgetUtilized"),
			ThisAccount: fields.Resolve(record, "budgetThisAccount"),
			Remaining:   fields.Resolve(record, "budgetRemaining"),
			PercentUsed: fields.Resolve(record, "budgetPercentUsed"),
		},
		MilestoneNumber:  fields.ResolveString(record, "paymentMilestoneNumber"),
		MilestoneSection: fields.ResolveString(record, "paymentMilestoneSection"),
		MilestoneText:    fields.ResolveString(record, "paymentMilestoneText"),
	}
}

// ParseAttachments reads an attachment cell: a list of objects carrying at
// least a url, usually a filename too. Unknown shapes are skipped.
func ParseAttachments(raw any) []Attachment {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var attachments []Attachment
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, _ := obj["url"].(string)
		if url == "" {
			continue
		}
		filename, _ := obj["filename"].(string)
		attachments = append(attachments, Attachment{URL: url, Filename: filename})
	}
	return attachments
}
