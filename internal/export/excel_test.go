package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/schema"
)

func testDataset() *join.Dataset {
	contract := &entity.Contract{ID: "con1", RecID: "C-77", Description: "שלד מגדל א", Balance: 80000}
	return &join.Dataset{
		PaymentsByID: map[string]*entity.Payment{
			"pay1": {
				ID:          "pay1",
				Project:     "מגדל א",
				Supplier:    "בטון בעמ",
				Amount:      "₪1,250.00",
				OrderNumber: "ORD-9",
				Description: "חשבון חלקי 4",
			},
		},
		ContractsByRecordID: map[string]*entity.Contract{
			"con1": contract,
			"C-77": contract,
		},
	}
}

func TestWrite(t *testing.T) {
	exporter := NewExporter(schema.NewNormalizer("he", "₪"), zap.NewNop())

	approvals := []*entity.Approval{
		{
			ID:              "rec1",
			Serial:          "1042",
			RawStatus:       "ממתין לחתימה",
			PaymentID:       "pay1",
			ContractRef:     "C-77",
			MilestoneNumber: "3",
			MilestoneText:   "גמר שלד",
		},
		{
			ID:        "rec2",
			Serial:    "1043",
			RawStatus: "נדחה",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, approvals, testDataset()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")

	assert.Equal(t, "Serial", rows[0][0])

	first := rows[1]
	assert.Equal(t, "1042", first[0])
	assert.Equal(t, "ממתין לחתימה", first[1])
	assert.Equal(t, "מגדל א", first[3])
	assert.Equal(t, "1,250 ₪", first[5], "amounts exported normalized")
	assert.Equal(t, "שלד מגדל א", first[8])
	assert.Equal(t, "3 גמר שלד", first[10])

	second := rows[2]
	assert.Equal(t, "1043", second[0])
	assert.Equal(t, "נדחה", second[1])
}

func TestWrite_EmptySelection(t *testing.T) {
	exporter := NewExporter(schema.NewNormalizer("he", "₪"), zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.Write(&buf, nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
