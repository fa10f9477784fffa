// Package view maintains the visible subset of a user's approvals and the
// multi-select set for bulk operations. State is a single immutable value;
// every transition returns a fresh copy so the rendering layer can rely on
// referential change detection.
package view

import (
	"sort"

	"github.com/paysign/signoff/internal/domain/entity"
)

// Bucket is a mutually exclusive status restriction on the visible list
type Bucket string

const (
	BucketAll      Bucket = "all"
	BucketWaiting  Bucket = "waiting"
	BucketDelayed  Bucket = "delayed"
	BucketRejected Bucket = "rejected"
)

// Mode is the list presentation mode
type Mode string

const (
	ModeCards Mode = "cards"
	ModeTable Mode = "table"
)

// State is the current view configuration and selection. Zero values are not
// meaningful; use NewState.
type State struct {
	Bucket   Bucket
	Project  string
	Supplier string
	Mode     Mode
	selected map[string]bool
}

// NewState returns the initial view state: all actionable approvals, card
// mode, nothing selected.
func NewState() State {
	return State{
		Bucket:   BucketAll,
		Mode:     ModeCards,
		selected: map[string]bool{},
	}
}

// WithBucket switches the status bucket. Selection is scoped to the visible
// list, so any filter change clears it.
func (s State) WithBucket(bucket Bucket) State {
	next := s
	next.Bucket = bucket
	next.selected = map[string]bool{}
	return next
}

// WithProject sets or clears the project equality filter
func (s State) WithProject(project string) State {
	next := s
	next.Project = project
	next.selected = map[string]bool{}
	return next
}

// WithSupplier sets or clears the supplier equality filter
func (s State) WithSupplier(supplier string) State {
	next := s
	next.Supplier = supplier
	next.selected = map[string]bool{}
	return next
}

// WithMode toggles between card and table presentation. Stale cross-mode
// selection is not retained.
func (s State) WithMode(mode Mode) State {
	next := s
	next.Mode = mode
	next.selected = map[string]bool{}
	return next
}

// ToggleSelect flips an id's membership in the selection set
func (s State) ToggleSelect(id string) State {
	next := s
	next.selected = copySet(s.selected)
	if next.selected[id] {
		delete(next.selected, id)
	} else {
		next.selected[id] = true
	}
	return next
}

// ToggleSelectAll flips between an empty selection and all currently visible
// ids. It never becomes a sticky full-dataset selection.
func (s State) ToggleSelectAll(visibleIDs []string) State {
	next := s
	if len(s.selected) > 0 {
		next.selected = map[string]bool{}
		return next
	}
	next.selected = make(map[string]bool, len(visibleIDs))
	for _, id := range visibleIDs {
		next.selected[id] = true
	}
	return next
}

// Selected reports whether an id is in the selection set
func (s State) Selected(id string) bool {
	return s.selected[id]
}

// SelectionSize returns the number of selected ids
func (s State) SelectionSize() int {
	return len(s.selected)
}

// SelectedIDs returns the selected ids in stable order
func (s State) SelectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Actionable applies the global exclusion rule: approvals with an empty
// status cell and approvals already signed are archival, not actionable, and
// disappear from every view and count.
func Actionable(approvals []*entity.Approval) []*entity.Approval {
	var out []*entity.Approval
	for _, a := range approvals {
		if a.RawStatus == "" || a.Status == entity.StatusSigned {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Visible returns the approvals matching the current bucket and the optional
// project/supplier filters, after the global exclusion rule. Payment lookups
// supply the project and supplier cells.
func (s State) Visible(approvals []*entity.Approval, payments map[string]*entity.Payment) []*entity.Approval {
	var out []*entity.Approval
	for _, a := range Actionable(approvals) {
		if !s.bucketMatches(a) {
			continue
		}
		if !s.paymentMatches(a, payments) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Counts returns the per-bucket totals after the global exclusion rule
func Counts(approvals []*entity.Approval) map[Bucket]int {
	counts := map[Bucket]int{
		BucketAll:      0,
		BucketWaiting:  0,
		BucketDelayed:  0,
		BucketRejected: 0,
	}
	for _, a := range Actionable(approvals) {
		counts[BucketAll]++
		switch a.Status {
		case entity.StatusWaiting:
			counts[BucketWaiting]++
		case entity.StatusDelayed:
			counts[BucketDelayed]++
		case entity.StatusRejected:
			counts[BucketRejected]++
		}
	}
	return counts
}

func (s State) bucketMatches(a *entity.Approval) bool {
	switch s.Bucket {
	case BucketWaiting:
		return a.Status == entity.StatusWaiting
	case BucketDelayed:
		return a.Status == entity.StatusDelayed
	case BucketRejected:
		return a.Status == entity.StatusRejected
	default:
		return true
	}
}

func (s State) paymentMatches(a *entity.Approval, payments map[string]*entity.Payment) bool {
	if s.Project == "" && s.Supplier == "" {
		return true
	}
	payment := payments[a.PaymentID]
	if payment == nil {
		return false
	}
	if s.Project != "" && payment.Project != s.Project {
		return false
	}
	if s.Supplier != "" && payment.Supplier != s.Supplier {
		return false
	}
	return true
}

func copySet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}
