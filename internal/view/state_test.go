package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysign/signoff/internal/domain/entity"
)

func approval(id string, raw string, status entity.Status, paymentID string) *entity.Approval {
	return &entity.Approval{ID: id, RawStatus: raw, Status: status, PaymentID: paymentID}
}

func testApprovals() []*entity.Approval {
	return []*entity.Approval{
		approval("a1", "Waiting", entity.StatusWaiting, "p1"),
		approval("a2", "Waiting", entity.StatusWaiting, "p2"),
		approval("a3", "Delayed", entity.StatusDelayed, "p1"),
		approval("a4", "Rejected", entity.StatusRejected, "p3"),
		approval("a5", "Signed", entity.StatusSigned, "p1"),
		approval("a6", "", entity.StatusUnknown, "p2"),
	}
}

func testPayments() map[string]*entity.Payment {
	return map[string]*entity.Payment{
		"p1": {ID: "p1", Project: "Tower A", Supplier: "Beton Ltd"},
		"p2": {ID: "p2", Project: "Tower A", Supplier: "Glass Co"},
		"p3": {ID: "p3", Project: "Tower B", Supplier: "Beton Ltd"},
	}
}

func TestActionable_ExcludesSignedAndEmptyStatus(t *testing.T) {
	actionable := Actionable(testApprovals())
	require.Len(t, actionable, 4)
	for _, a := range actionable {
		assert.NotEqual(t, entity.StatusSigned, a.Status)
		assert.NotEmpty(t, a.RawStatus)
	}
}

func TestCounts_ExcludeSignedAndEmptyEverywhere(t *testing.T) {
	counts := Counts(testApprovals())
	assert.Equal(t, 4, counts[BucketAll], "signed and empty-status are out of the All count too")
	assert.Equal(t, 2, counts[BucketWaiting])
	assert.Equal(t, 1, counts[BucketDelayed])
	assert.Equal(t, 1, counts[BucketRejected])
}

func TestVisible_BucketAndEqualityFiltersCombineWithAnd(t *testing.T) {
	payments := testPayments()

	tests := []struct {
		name     string
		state    State
		wantIDs  []string
	}{
		{
			name:    "all bucket, no extra filters",
			state:   NewState(),
			wantIDs: []string{"a1", "a2", "a3", "a4"},
		},
		{
			name:    "waiting bucket",
			state:   NewState().WithBucket(BucketWaiting),
			wantIDs: []string{"a1", "a2"},
		},
		{
			name:    "project filter",
			state:   NewState().WithProject("Tower A"),
			wantIDs: []string{"a1", "a2", "a3"},
		},
		{
			name:    "project AND supplier",
			state:   NewState().WithProject("Tower A").WithSupplier("Beton Ltd"),
			wantIDs: []string{"a1", "a3"},
		},
		{
			name:    "bucket AND supplier",
			state:   NewState().WithBucket(BucketRejected).WithSupplier("Beton Ltd"),
			wantIDs: []string{"a4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible := tt.state.Visible(testApprovals(), payments)
			var ids []string
			for _, a := range visible {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFilterChangesClearSelection(t *testing.T) {
	s := NewState().ToggleSelect("a1").ToggleSelect("a2")
	require.Equal(t, 2, s.SelectionSize())

	assert.Zero(t, s.WithBucket(BucketWaiting).SelectionSize())
	assert.Zero(t, s.WithProject("Tower A").SelectionSize())
	assert.Zero(t, s.WithSupplier("Beton Ltd").SelectionSize())
}

func TestModeToggleClearsSelection(t *testing.T) {
	s := NewState()
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		s = s.ToggleSelect(id)
	}
	require.Equal(t, 5, s.SelectionSize())

	s = s.WithMode(ModeTable)
	assert.Zero(t, s.SelectionSize())
	assert.Equal(t, ModeTable, s.Mode)
}

func TestToggleSelect(t *testing.T) {
	s := NewState().ToggleSelect("a1")
	assert.True(t, s.Selected("a1"))

	s = s.ToggleSelect("a1")
	assert.False(t, s.Selected("a1"))
}

func TestToggleSelectAll(t *testing.T) {
	visible := []string{"a1", "a2", "a3"}

	s := NewState().ToggleSelectAll(visible)
	assert.Equal(t, []string{"a1", "a2", "a3"}, s.SelectedIDs())

	// A second toggle empties the selection even if the visible list grew.
	s = s.ToggleSelectAll([]string{"a1", "a2", "a3", "a4"})
	assert.Zero(t, s.SelectionSize())
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	base := NewState().ToggleSelect("a1")
	_ = base.ToggleSelect("a2")
	_ = base.WithBucket(BucketWaiting)

	assert.Equal(t, []string{"a1"}, base.SelectedIDs(), "transitions must return copies")
	assert.Equal(t, BucketAll, base.Bucket)
}
