package entity

import (
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// MilestoneOrderSentinel pushes milestones without any parseable ordering
// key to the end of the candidate sort.
const MilestoneOrderSentinel = 999999

// Field name variants observed across revisions of the milestone table. The
// configured canonical name is tried first; the variants are a compatibility
// shim for older rows.
var (
	milestoneNumberVariants  = []string{"אבן דרך", "מספר אבן דרך", "Milestone Number"}
	milestoneSectionVariants = []string{"סעיף", "סעיף בחוזה", "Section"}
	milestoneTextVariants    = []string{"תיאור", "פירוט", "Description"}
	milestoneOrderVariants   = []string{"סדר", "מס", "Order"}

	// MilestoneContractSearchFields are the field name variants that may
	// hold a reference back to the contract, used for the text-search
	// fallback when the contract carries no direct milestone links.
	MilestoneContractSearchFields = []string{"חוזה", "Contract", "Contract RecID"}
)

// Milestone is a contract line-item/phase record
type Milestone struct {
	ID       string
	Order    int
	Number   string
	Section  string
	Text     string
}

// NewMilestone parses a milestone record, trying the configured field name
// first and falling back through the known variants; first non-empty wins.
func NewMilestone(record *tablestore.Record, fields schema.FieldMap) *Milestone {
	m := &Milestone{
		ID:      record.ID,
		Number:  firstNonEmpty(record, fields, "milestoneNumber", milestoneNumberVariants),
		Section: firstNonEmpty(record, fields, "milestoneSection", milestoneSectionVariants),
		Text:    firstNonEmpty(record, fields, "milestoneText", milestoneTextVariants),
	}
	m.Order = milestoneOrder(record, m)
	return m
}

// firstNonEmpty resolves the configured field and then each variant in
// priority order, returning the first non-empty display string.
func firstNonEmpty(record *tablestore.Record, fields schema.FieldMap, key string, variants []string) string {
	if s := fields.ResolveString(record, key); s != "" {
		return s
	}
	for _, name := range variants {
		if record.Fields == nil {
			break
		}
		if s := schema.Ingest(record.Fields[name]).DisplayString(); s != "" {
			return s
		}
	}
	return ""
}

// milestoneOrder picks the best-available numeric ordering key: the resolved
// milestone number, then the dedicated order field variants, then the section
// number, defaulting to the sentinel when none parse.
func milestoneOrder(record *tablestore.Record, m *Milestone) int {
	candidates := []any{m.Number}
	for _, name := range milestoneOrderVariants {
		if record.Fields != nil {
			candidates = append(candidates, record.Fields[name])
		}
	}
	candidates = append(candidates, m.Section)

	for _, candidate := range candidates {
		if n, ok := schema.Numeric(candidate); ok {
			return int(n)
		}
	}
	return MilestoneOrderSentinel
}
