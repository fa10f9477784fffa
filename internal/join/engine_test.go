package join

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/domain/entity"
	"github.com/paysign/signoff/internal/schema"
	"github.com/paysign/signoff/internal/tablestore"
)

type mockStore struct {
	listFunc      func(ctx context.Context, table, formula string) ([]tablestore.Record, error)
	getByIDFunc   func(ctx context.Context, table, id string) (*tablestore.Record, error)
	listByIDsFunc func(ctx context.Context, table string, ids []string) ([]tablestore.Record, error)
}

func (m *mockStore) List(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, table, formula)
	}
	return nil, nil
}

func (m *mockStore) GetByID(ctx context.Context, table, id string) (*tablestore.Record, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, table, id)
	}
	return nil, errors.New("not found")
}

func (m *mockStore) ListByIDs(ctx context.Context, table string, ids []string) ([]tablestore.Record, error) {
	if m.listByIDsFunc != nil {
		return m.listByIDsFunc(ctx, table, ids)
	}
	return nil, nil
}

func (m *mockStore) BatchSize() int { return 20 }

var (
	testTables = Tables{
		Employees:  "Employees",
		Approvals:  "Approvals",
		Payments:   "Payments",
		Contracts:  "Contracts",
		Milestones: "Milestones",
	}

	testFields = schema.FieldMap{
		"approvalStatus":      "Status",
		"approvalAssignee":    "Assignee",
		"approvalOrder":       "Order",
		"approvalPaymentLink": "Payment",
		"approvalContractLink": "Contract",
		"paymentProject":      "Project",
		"paymentSupplier":     "Supplier",
		"contractRecID":       "RecID",
		"contractMilestoneLinks": "Milestones",
		"milestoneNumber":     "Number",
		"milestoneSection":    "Section",
		"milestoneText":       "Text",
	}

	testStatuses = entity.StatusSet{
		Waiting:  "Waiting",
		Signed:   "Signed",
		Rejected: "Rejected",
		Delayed:  "Delayed",
	}
)

func newTestEngine(store Store) *Engine {
	return NewEngine(store, testTables, testFields, testStatuses, zap.NewNop())
}

func approvalRecord(id, status, order, paymentID, contractRef string) tablestore.Record {
	fields := map[string]any{"Status": status}
	if order != "" {
		fields["Order"] = order
	}
	if paymentID != "" {
		fields["Payment"] = []any{paymentID}
	}
	if contractRef != "" {
		fields["Contract"] = []any{contractRef}
	}
	return tablestore.Record{ID: id, Fields: fields}
}

func parseApproval(record tablestore.Record) *entity.Approval {
	return entity.NewApproval(&record, testFields, testStatuses)
}

func TestBuildDataset_GroupsApprovalsByPayment(t *testing.T) {
	store := &mockStore{
		listByIDsFunc: func(ctx context.Context, table string, ids []string) ([]tablestore.Record, error) {
			require.Equal(t, "Payments", table)
			assert.Equal(t, []string{"pay1", "pay2"}, ids)
			return []tablestore.Record{
				{ID: "pay1", Fields: map[string]any{"Project": "Tower A"}},
				{ID: "pay2", Fields: map[string]any{"Project": "Tower B"}},
			}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			switch table {
			case "Approvals":
				return []tablestore.Record{
					approvalRecord("appr1", "Waiting", "1", "pay1", ""),
					approvalRecord("appr2", "Waiting", "2", "pay1", ""),
					approvalRecord("appr3", "Waiting", "", "pay2", ""),
				}, nil
			case "Contracts":
				return nil, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approvals := []*entity.Approval{
		parseApproval(approvalRecord("appr1", "Waiting", "1", "pay1", "")),
		parseApproval(approvalRecord("appr2", "Waiting", "2", "pay1", "")),
		parseApproval(approvalRecord("appr3", "Waiting", "", "pay2", "")),
	}

	dataset, err := engine.BuildDataset(context.Background(), approvals)
	require.NoError(t, err)

	assert.Len(t, dataset.PaymentsByID, 2)
	assert.Len(t, dataset.ApprovalsByPaymentID["pay1"], 2, "grouping must not overwrite")
	assert.Len(t, dataset.ApprovalsByPaymentID["pay2"], 1)
}

func TestBuildDataset_ContractIndexedUnderBothKeys(t *testing.T) {
	store := &mockStore{
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			if table == "Contracts" {
				// The formula must probe both reference styles.
				assert.Contains(t, formula, "RECORD_ID()='C-0042'")
				assert.Contains(t, formula, "{RecID}='C-0042'")
				return []tablestore.Record{
					{ID: "recC9", Fields: map[string]any{"RecID": "C-0042"}},
				}, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approvals := []*entity.Approval{
		parseApproval(approvalRecord("appr1", "Waiting", "1", "", "C-0042")),
	}

	dataset, err := engine.BuildDataset(context.Background(), approvals)
	require.NoError(t, err)

	// The approval's link holds the RecID, not the record id; the join must
	// still resolve the contract.
	byRecID := dataset.Contract("C-0042")
	require.NotNil(t, byRecID)
	assert.Same(t, byRecID, dataset.Contract("recC9"))
}

func TestResolveDetail_SiblingChainOrdered(t *testing.T) {
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			return &tablestore.Record{ID: id, Fields: map[string]any{}}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			if table == "Approvals" {
				return []tablestore.Record{
					approvalRecord("apprB", "Waiting", "2", "pay1", ""),
					approvalRecord("apprA", "Signed", "1", "pay1", ""),
					approvalRecord("apprC", "Waiting", "3", "pay1", ""),
				}, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("apprB", "Waiting", "2", "pay1", ""))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err)

	require.Len(t, detail.Siblings, 3)
	assert.Equal(t, "apprA", detail.Siblings[0].ID)
	assert.Equal(t, "apprB", detail.Siblings[1].ID)
	assert.Equal(t, "apprC", detail.Siblings[2].ID)
}

func TestResolveDetail_SentinelOrderSortsLast(t *testing.T) {
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			return &tablestore.Record{ID: id, Fields: map[string]any{}}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			if table == "Approvals" {
				return []tablestore.Record{
					approvalRecord("apprNoOrder", "Waiting", "", "pay1", ""),
					approvalRecord("apprFirst", "Waiting", "1", "pay1", ""),
				}, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("apprFirst", "Waiting", "1", "pay1", ""))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err)
	require.Len(t, detail.Siblings, 2)
	assert.Equal(t, "apprFirst", detail.Siblings[0].ID)
	assert.Equal(t, "apprNoOrder", detail.Siblings[1].ID)
}

func TestResolveDetail_PartialFailureStillResolves(t *testing.T) {
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			return nil, &tablestore.RemoteError{StatusCode: 500, Message: "boom"}
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			switch table {
			case "Contracts":
				return []tablestore.Record{{ID: "recC1", Fields: map[string]any{"RecID": "C-1"}}}, nil
			case "Approvals":
				return nil, errors.New("network down")
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("appr1", "Waiting", "1", "pay1", "C-1"))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err, "partial results are acceptable, total failure is not")
	assert.Nil(t, detail.Payment)
	assert.Empty(t, detail.Siblings)
	require.NotNil(t, detail.Contract)
	assert.Equal(t, "C-1", detail.Contract.RecID)
}

func TestResolveDetail_MilestoneTextSearchFallback(t *testing.T) {
	var milestoneFormula string
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			return &tablestore.Record{ID: id, Fields: map[string]any{"Project": "A", "Supplier": "S"}}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			switch table {
			case "Contracts":
				// no direct milestone links on the contract
				return []tablestore.Record{{ID: "recC1", Fields: map[string]any{"RecID": "C-1"}}}, nil
			case "Milestones":
				milestoneFormula = formula
				return []tablestore.Record{
					{ID: "m2", Fields: map[string]any{"Number": "2"}},
					{ID: "mX", Fields: map[string]any{"Text": "ללא מספר"}},
					{ID: "m1", Fields: map[string]any{"Number": "1"}},
				}, nil
			case "Approvals":
				return nil, nil
			case "Payments":
				return nil, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("appr1", "Waiting", "1", "pay1", "C-1"))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err)

	require.Len(t, detail.Milestones, 3)
	assert.Equal(t, "m1", detail.Milestones[0].ID)
	assert.Equal(t, "m2", detail.Milestones[1].ID)
	assert.Equal(t, "mX", detail.Milestones[2].ID, "sentinel order sorts last")

	assert.True(t, strings.Contains(milestoneFormula, "FIND('recC1'") ||
		strings.Contains(milestoneFormula, "FIND('C-1'"),
		"fallback must search the contract reference in milestone fields")
}

func TestResolveDetail_CousinPaymentsShareProjectAndSupplier(t *testing.T) {
	var paymentsFormula string
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			require.Equal(t, "Payments", table)
			return &tablestore.Record{ID: id, Fields: map[string]any{
				"Project":  "מגדל א",
				"Supplier": "בטון בעמ",
			}}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			if table == "Payments" {
				paymentsFormula = formula
				return []tablestore.Record{
					{ID: "pay1", Fields: map[string]any{"Project": "מגדל א", "Supplier": "בטון בעמ"}},
					{ID: "pay7", Fields: map[string]any{"Project": "מגדל א", "Supplier": "בטון בעמ"}},
				}, nil
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("appr1", "Waiting", "1", "pay1", ""))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err)

	require.Len(t, detail.CousinPayments, 2)
	assert.Equal(t, "pay1", detail.CousinPayments[0].ID)
	assert.Equal(t, "pay7", detail.CousinPayments[1].ID)

	// Both pair members must be required, not either one.
	assert.Contains(t, paymentsFormula, "AND(")
	assert.Contains(t, paymentsFormula, "{Project}='מגדל א'")
	assert.Contains(t, paymentsFormula, "{Supplier}='בטון בעמ'")
}

func TestResolveDetail_CousinLookupSkippedWithoutSupplier(t *testing.T) {
	var paymentListCalls int
	store := &mockStore{
		getByIDFunc: func(ctx context.Context, table, id string) (*tablestore.Record, error) {
			return &tablestore.Record{ID: id, Fields: map[string]any{"Project": "מגדל א"}}, nil
		},
		listFunc: func(ctx context.Context, table, formula string) ([]tablestore.Record, error) {
			if table == "Payments" {
				paymentListCalls++
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store)
	approval := parseApproval(approvalRecord("appr1", "Waiting", "1", "pay1", ""))

	detail, err := engine.ResolveDetail(context.Background(), approval)
	require.NoError(t, err)

	assert.Empty(t, detail.CousinPayments)
	assert.Zero(t, paymentListCalls, "an incomplete project/supplier pair must not match the whole table")
}
