// Package export renders the currently visible approvals to an Excel
// workbook, with payment and contract columns joined in and amounts
// normalized the same way the views render them.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/schema"
)

const sheetName = "Approvals"

var headers = []string{
	"Serial",
	"Status",
	"Assignee",
	"Project",
	"Supplier",
	"Amount",
	"Order No.",
	"Description",
	"Contract",
	"Contract Balance",
	"Milestone",
	"Reject Reason",
	"Delay Reason",
}

// Exporter writes approval workbooks
type Exporter struct {
	normalizer *schema.Normalizer
	logger     *zap.Logger
}

// NewExporter creates an exporter
func NewExporter(normalizer *schema.Normalizer, logger *zap.Logger) *Exporter {
	return &Exporter{
		normalizer: normalizer,
		logger:     logger,
	}
}

// Write renders the given approvals, one row each, joined against the
// dataset, and writes the workbook to w
func (e *Exporter) Write(w io.Writer, approvals []*entity.Approval, dataset *join.Dataset) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := e.writeHeader(f); err != nil {
		return err
	}

	for i, a := range approvals {
		row := e.buildRow(a, dataset)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "M", 18); err != nil {
		return fmt.Errorf("failed to set column widths: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Workbook exported", zap.Int("rows", len(approvals)))
	return nil
}

func (e *Exporter) writeHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to compute header range: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}
	return nil
}

func (e *Exporter) buildRow(a *entity.Approval, dataset *join.Dataset) []any {
	var payment *entity.Payment
	var contract *entity.Contract
	if dataset != nil {
		payment = dataset.PaymentsByID[a.PaymentID]
		contract = dataset.Contract(a.ContractRef)
	}

	row := []any{
		a.Serial,
		a.RawStatus,
		a.AssigneeName(),
	}

	if payment != nil {
		row = append(row,
			payment.Project,
			payment.Supplier,
			e.normalizer.Currency(payment.Amount),
			payment.OrderNumber,
			payment.Description,
		)
	} else {
		row = append(row, "", "", "", "", "")
	}

	if contract != nil {
		row = append(row,
			contract.Description,
			e.normalizer.Currency(contract.Balance),
		)
	} else {
		row = append(row, "", "")
	}

	milestone := a.MilestoneNumber
	if milestone != "" && a.MilestoneText != "" {
		milestone = milestone + " " + a.MilestoneText
	} else if milestone == "" {
		milestone = a.MilestoneText
	}

	return append(row, milestone, a.RejectReason, a.DelayReason)
}
