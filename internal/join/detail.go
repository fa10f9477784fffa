package join

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/tablestore"
)

// Detail is everything the detail view of a single approval needs. Any
// sub-fetch may have failed and left its slot nil/empty; the detail as a
// whole still resolves.
type Detail struct {
	Approval       *entity.Approval
	Payment        *entity.Payment
	Contract       *entity.Contract
	Siblings       []*entity.Approval
	CousinPayments []*entity.Payment
	Milestones     []*entity.Milestone
}

// ResolveDetail resolves the linked payment, contract and ordered sibling
// chain concurrently, then the budget-history cousins and milestone
// candidates that depend on them. Sub-fetch failures are logged and degrade
// to partial results; only a nil approval is an error.
func (e *Engine) ResolveDetail(ctx context.Context, approval *entity.Approval) (*Detail, error) {
	if approval == nil {
		return nil, fmt.Errorf("resolve detail: no approval")
	}

	detail := &Detail{Approval: approval}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		payment, err := e.fetchPayment(gctx, approval.PaymentID)
		if err != nil {
			e.logger.Warn("Detail payment fetch failed",
				zap.String("approval_id", approval.ID),
				zap.Error(err))
			return nil
		}
		detail.Payment = payment
		return nil
	})

	g.Go(func() error {
		contract, err := e.fetchContract(gctx, approval.ContractRef)
		if err != nil {
			e.logger.Warn("Detail contract fetch failed",
				zap.String("approval_id", approval.ID),
				zap.Error(err))
			return nil
		}
		detail.Contract = contract
		return nil
	})

	g.Go(func() error {
		siblings, err := e.fetchSiblingChain(gctx, approval)
		if err != nil {
			e.logger.Warn("Detail sibling chain fetch failed",
				zap.String("approval_id", approval.ID),
				zap.Error(err))
			return nil
		}
		detail.Siblings = siblings
		return nil
	})

	// Closures swallow their errors, so Wait only structures the fan-in.
	_ = g.Wait()

	if detail.Payment != nil {
		cousins, err := e.fetchCousinPayments(ctx, detail.Payment)
		if err != nil {
			e.logger.Warn("Cousin payments fetch failed",
				zap.String("payment_id", detail.Payment.ID),
				zap.Error(err))
		} else {
			detail.CousinPayments = cousins
		}
	}

	if detail.Contract != nil {
		milestones, err := e.fetchMilestones(ctx, detail.Contract)
		if err != nil {
			e.logger.Warn("Milestone lookup failed",
				zap.String("contract_id", detail.Contract.ID),
				zap.Error(err))
		} else {
			detail.Milestones = milestones
		}
	}

	return detail, nil
}

func (e *Engine) fetchPayment(ctx context.Context, paymentID string) (*entity.Payment, error) {
	if paymentID == "" {
		return nil, nil
	}
	record, err := e.store.GetByID(ctx, e.tables.Payments, paymentID)
	if err != nil {
		return nil, err
	}
	return entity.NewPayment(record, e.fields), nil
}

// fetchContract resolves a contract reference by direct id or RecID
func (e *Engine) fetchContract(ctx context.Context, ref string) (*entity.Contract, error) {
	if ref == "" {
		return nil, nil
	}
	formula := tablestore.OrFormula(
		tablestore.IDFormula(ref),
		tablestore.EqualsFormula(e.fields.Name("contractRecID"), ref))
	records, err := e.store.List(ctx, e.tables.Contracts, formula)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return entity.NewContract(&records[0], e.fields), nil
}

// fetchSiblingChain returns the full ordered chain of approvals sharing the
// approval's payment, the approval itself included.
func (e *Engine) fetchSiblingChain(ctx context.Context, approval *entity.Approval) ([]*entity.Approval, error) {
	if approval.PaymentID == "" {
		return []*entity.Approval{approval}, nil
	}
	formula := tablestore.FindFormula(e.fields.Name("approvalPaymentLink"), approval.PaymentID)
	records, err := e.store.List(ctx, e.tables.Approvals, formula)
	if err != nil {
		return nil, err
	}
	chain := e.parseApprovals(records)
	sortChain(chain)
	return chain, nil
}

// fetchCousinPayments lists payments sharing the payment's project and
// supplier pair, for the budget-history table.
func (e *Engine) fetchCousinPayments(ctx context.Context, payment *entity.Payment) ([]*entity.Payment, error) {
	if payment.Project == "" || payment.Supplier == "" {
		return nil, nil
	}
	formula := tablestore.AndFormula(
		tablestore.EqualsFormula(e.fields.Name("paymentProject"), payment.Project),
		tablestore.EqualsFormula(e.fields.Name("paymentSupplier"), payment.Supplier))
	records, err := e.store.List(ctx, e.tables.Payments, formula)
	if err != nil {
		return nil, err
	}

	cousins := make([]*entity.Payment, 0, len(records))
	for _, record := range records {
		rec := record
		cousins = append(cousins, entity.NewPayment(&rec, e.fields))
	}
	return cousins, nil
}

// fetchMilestones resolves the contract's milestone candidates: direct link
// ids first, then a text-search fallback matching the contract's id or RecID
// inside the known milestone-table reference fields.
func (e *Engine) fetchMilestones(ctx context.Context, contract *entity.Contract) ([]*entity.Milestone, error) {
	var records []tablestore.Record
	var err error

	if len(contract.MilestoneIDs) > 0 {
		records, err = e.store.ListByIDs(ctx, e.tables.Milestones, contract.MilestoneIDs)
		if err != nil {
			return nil, err
		}
	}

	if len(records) == 0 {
		records, err = e.searchMilestonesByContract(ctx, contract)
		if err != nil {
			return nil, err
		}
	}

	milestones := make([]*entity.Milestone, 0, len(records))
	for _, record := range records {
		rec := record
		milestones = append(milestones, entity.NewMilestone(&rec, e.fields))
	}

	sort.SliceStable(milestones, func(i, j int) bool {
		return milestones[i].Order < milestones[j].Order
	})
	return milestones, nil
}

func (e *Engine) searchMilestonesByContract(ctx context.Context, contract *entity.Contract) ([]tablestore.Record, error) {
	refs := []string{contract.ID}
	if contract.RecID != "" {
		refs = append(refs, contract.RecID)
	}

	var parts []string
	for _, field := range entity.MilestoneContractSearchFields {
		for _, ref := range refs {
			parts = append(parts, tablestore.FindFormula(field, ref))
		}
	}
	return e.store.List(ctx, e.tables.Milestones, tablestore.OrFormula(parts...))
}
