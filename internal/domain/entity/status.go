package entity

// Status is the collapsed display status of an approval
type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusSigned   Status = "SIGNED"
	StatusRejected Status = "REJECTED"
	StatusDelayed  Status = "DELAYED"
	StatusUnknown  Status = "UNKNOWN"
)

// statusSynonyms are literal values observed in the remote base alongside the
// configured canonical ones. The base's literals drifted over time; this list
// is a frozen compatibility shim. The configured value is authoritative and
// new synonyms must not be added without evidence from the base itself.
var statusSynonyms = map[Status][]string{
	StatusWaiting:  {"ממתין", "ממתין לחתימה", "מחכה לחתימה"},
	StatusSigned:   {"נחתם", "חתום"},
	StatusRejected: {"נדחה", "סורב"},
	StatusDelayed:  {"מעוכב", "מושהה", "מעוכבת"},
}

// StatusSet holds the canonical status values configured for the remote base
type StatusSet struct {
	Waiting  string
	Signed   string
	Rejected string
	Delayed  string
}

// Canonical returns the configured value to write back for a status
func (s StatusSet) Canonical(status Status) string {
	switch status {
	case StatusWaiting:
		return s.Waiting
	case StatusSigned:
		return s.Signed
	case StatusRejected:
		return s.Rejected
	case StatusDelayed:
		return s.Delayed
	default:
		return ""
	}
}

// Collapse maps a raw status cell to exactly one collapsed status. Matching
// tolerates both the configured canonical value and the known literal
// synonyms; anything else, including empty, collapses to StatusUnknown.
func (s StatusSet) Collapse(raw string) Status {
	if raw == "" {
		return StatusUnknown
	}

	canonical := map[Status]string{
		StatusWaiting:  s.Waiting,
		StatusSigned:   s.Signed,
		StatusRejected: s.Rejected,
		StatusDelayed:  s.Delayed,
	}
	for status, value := range canonical {
		if raw == value {
			return status
		}
	}

	for status, synonyms := range statusSynonyms {
		for _, synonym := range synonyms {
			if raw == synonym {
				return status
			}
		}
	}

	return StatusUnknown
}
