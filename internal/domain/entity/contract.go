package entity

import (
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Contract is a contract record. RecID is a secondary natural key: upstream
// link fields inconsistently store either the record id or RecID, so joins
// must match on both.
type Contract struct {
	ID          string
	RecID       string
	Description string
	Date        string
	Sum         any
	Paid        any
	Balance     any
	Attachments []Attachment
	// MilestoneIDs are the directly linked milestone record ids, when the
	// base maintains the link field at all.
	MilestoneIDs []string
}

// NewContract parses a contract record through the schema map
func NewContract(record *tablestore.Record, fields schema.FieldMap) *Contract {
	c := &Contract{
		ID:           record.ID,
		RecID:        fields.ResolveString(record, "contractRecID"),
		Description:  fields.ResolveString(record, "contractDescription"),
		Date:         fields.ResolveString(record, "contractDate"),
		Sum:          fields.Resolve(record, "contractSum"),
		Paid:         fields.Resolve(record, "contractPaid"),
		Balance:      fields.Resolve(record, "contractBalance"),
		Attachments:  ParseAttachments(fields.Resolve(record, "contractAttachments")),
		MilestoneIDs: fields.ResolveValue(record, "contractMilestoneLinks").Strings(),
	}

	// Balance is derived from sum and paid when the base does not provide it.
	if schema.Ingest(c.Balance).IsEmpty() {
		sum, sumOK := schema.Numeric(c.Sum)
		paid, paidOK := schema.Numeric(c.Paid)
		if sumOK && paidOK {
			c.Balance = sum - paid
		}
	}

	return c
}
