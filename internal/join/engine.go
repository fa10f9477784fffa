// Package join stitches together approvals, payments, contracts and
// milestones fetched independently from the remote store, building id-keyed
// maps for O(1) lookup during filtering and rendering.
package join

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

// Store is the subset of the tablestore client the engine needs
type Store interface {
	List(ctx context.Context, table, formula string) ([]tablestore.Record, error)
	GetByID(ctx context.Context, table, id string) (*tablestore.Record, error)
	ListByIDs(ctx context.Context, table string, ids []string) ([]tablestore.Record, error)
	BatchSize() int
}

// Tables holds the remote table identifiers the engine queries
type Tables struct {
	Employees  string
	Approvals  string
	Payments   string
	Contracts  string
	Milestones string
}

// Engine fetches and joins the remote tables
type Engine struct {
	store    Store
	tables   Tables
	fields   schema.FieldMap
	statuses entity.StatusSet
	logger   *zap.Logger
}

// NewEngine creates a join engine
func NewEngine(store Store, tables Tables, fields schema.FieldMap, statuses entity.StatusSet, logger *zap.Logger) *Engine {
	return &Engine{
		store:    store,
		tables:   tables,
		fields:   fields,
		statuses: statuses,
		logger:   logger,
	}
}

// Dataset is the joined in-memory mirror of a user's approval universe.
// It is rebuilt from scratch on login and after every action; it is never
// patched incrementally for the list view.
type Dataset struct {
	Approvals            []*entity.Approval
	PaymentsByID         map[string]*entity.Payment
	ApprovalsByPaymentID map[string][]*entity.Approval
	// ContractsByRecordID indexes each contract under both its record id and
	// its RecID so either reference style resolves.
	ContractsByRecordID map[string]*entity.Contract
}

// Contract resolves a contract reference of either style
func (d *Dataset) Contract(ref string) *entity.Contract {
	if d == nil || ref == "" {
		return nil
	}
	return d.ContractsByRecordID[ref]
}

// ListAssignedApprovals fetches the approvals assigned to an employee
func (e *Engine) ListAssignedApprovals(ctx context.Context, employeeName string) ([]*entity.Approval, error) {
	formula := tablestore.EqualsFormula(e.fields.Name("approvalAssignee"), employeeName)
	records, err := e.store.List(ctx, e.tables.Approvals, formula)
	if err != nil {
		return nil, fmt.Errorf("fetch assigned approvals: %w", err)
	}
	return e.parseApprovals(records), nil
}

// BuildDataset fetches everything the approval set references and assembles
// the lookup maps.
func (e *Engine) BuildDataset(ctx context.Context, approvals []*entity.Approval) (*Dataset, error) {
	dataset := &Dataset{
		Approvals:            approvals,
		PaymentsByID:         make(map[string]*entity.Payment),
		ApprovalsByPaymentID: make(map[string][]*entity.Approval),
		ContractsByRecordID:  make(map[string]*entity.Contract),
	}

	paymentIDs := distinct(approvals, func(a *entity.Approval) string { return a.PaymentID })
	contractRefs := distinct(approvals, func(a *entity.Approval) string { return a.ContractRef })

	// Payments and the sibling approvals sharing them, two chunked batches.
	paymentRecords, err := e.store.ListByIDs(ctx, e.tables.Payments, paymentIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch referenced payments: %w", err)
	}
	for _, record := range paymentRecords {
		rec := record
		dataset.PaymentsByID[rec.ID] = entity.NewPayment(&rec, e.fields)
	}

	siblings, err := e.fetchApprovalsByPayments(ctx, paymentIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch sibling approvals: %w", err)
	}
	for _, sibling := range siblings {
		if sibling.PaymentID == "" {
			continue
		}
		dataset.ApprovalsByPaymentID[sibling.PaymentID] = append(dataset.ApprovalsByPaymentID[sibling.PaymentID], sibling)
	}
	for _, chain := range dataset.ApprovalsByPaymentID {
		sortChain(chain)
	}

	contracts, err := e.fetchContractsByRefs(ctx, contractRefs)
	if err != nil {
		return nil, fmt.Errorf("fetch referenced contracts: %w", err)
	}
	for _, contract := range contracts {
		dataset.ContractsByRecordID[contract.ID] = contract
		if contract.RecID != "" {
			dataset.ContractsByRecordID[contract.RecID] = contract
		}
	}

	return dataset, nil
}

// fetchApprovalsByPayments lists every approval whose payment link matches
// any of the given payment ids, chunked like an id batch.
func (e *Engine) fetchApprovalsByPayments(ctx context.Context, paymentIDs []string) ([]*entity.Approval, error) {
	linkField := e.fields.Name("approvalPaymentLink")

	var approvals []*entity.Approval
	for _, chunk := range tablestore.ChunkIDs(paymentIDs, e.store.BatchSize()) {
		parts := make([]string, len(chunk))
		for i, id := range chunk {
			parts[i] = tablestore.FindFormula(linkField, id)
		}
		records, err := e.store.List(ctx, e.tables.Approvals, tablestore.OrFormula(parts...))
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, e.parseApprovals(records)...)
	}
	return approvals, nil
}

// fetchContractsByRefs lists contracts matching the refs on either the
// record id or the RecID field. Matching on both is mandatory: upstream link
// cells store whichever form the row's author happened to use.
func (e *Engine) fetchContractsByRefs(ctx context.Context, refs []string) ([]*entity.Contract, error) {
	recIDField := e.fields.Name("contractRecID")

	var contracts []*entity.Contract
	for _, chunk := range tablestore.ChunkIDs(refs, e.store.BatchSize()) {
		parts := make([]string, 0, len(chunk)*2)
		for _, ref := range chunk {
			parts = append(parts,
				tablestore.IDFormula(ref),
				tablestore.EqualsFormula(recIDField, ref))
		}
		records, err := e.store.List(ctx, e.tables.Contracts, tablestore.OrFormula(parts...))
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			rec := record
			contracts = append(contracts, entity.NewContract(&rec, e.fields))
		}
	}
	return contracts, nil
}

func (e *Engine) parseApprovals(records []tablestore.Record) []*entity.Approval {
	approvals := make([]*entity.Approval, 0, len(records))
	for _, record := range records {
		rec := record
		approvals = append(approvals, entity.NewApproval(&rec, e.fields, e.statuses))
	}
	return approvals
}

// sortChain orders a sibling-approval chain by its order key; records
// without a parseable key carry the sentinel and sort last.
func sortChain(chain []*entity.Approval) {
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].OrderKey < chain[j].OrderKey
	})
}

// distinct collects the non-empty distinct values of a reference field,
// preserving first-seen order.
func distinct(approvals []*entity.Approval, ref func(*entity.Approval) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range approvals {
		value := ref(a)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
