package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/schema"
)

func TestBuildPrompt(t *testing.T) {
	g := NewGenerator("test-key", Config{Model: "gpt-4o-mini"}, schema.NewNormalizer("he", "₪"), zap.NewNop())

	detail := &join.Detail{
		Approval: &entity.Approval{
			ID:        "rec1",
			Serial:    "1042",
			RawStatus: "ממתין לחתימה",
		},
		Payment: &entity.Payment{
			Description: "חשבון חלקי 4",
			Supplier:    "בטון בעמ",
			Amount:      "₪1,250.00",
			Project:     "מגדל א",
			Budget:      entity.BudgetUsage{Remaining: 80000},
		},
		Contract: &entity.Contract{Description: "שלד מגדל א", Balance: 120000},
		Siblings: []*entity.Approval{
			{ID: "rec1"},
			{ID: "rec2", RawStatus: "נחתם", Assignee: schema.Value{Kind: schema.KindUserRef, Name: "Noa"}},
		},
	}

	prompt := g.buildPrompt(detail)

	assert.Contains(t, prompt, "1042")
	assert.Contains(t, prompt, "1,250 ₪")
	assert.Contains(t, prompt, "80,000 ₪")
	assert.Contains(t, prompt, "No milestone assigned yet")
	assert.Contains(t, prompt, "Co-approver Noa: נחתם")
	assert.NotContains(t, prompt, "Co-approver : ", "the approval itself is not listed as a co-approver")
}

func TestBuildPrompt_MinimalDetail(t *testing.T) {
	g := NewGenerator("test-key", Config{}, schema.NewNormalizer("he", "₪"), zap.NewNop())

	prompt := g.buildPrompt(&join.Detail{
		Approval: &entity.Approval{ID: "rec1", Serial: "7", RawStatus: "מעוכב"},
	})

	assert.Contains(t, prompt, "7")
	assert.NotContains(t, prompt, "Payment:")
	assert.NotContains(t, prompt, "Contract:")
}
