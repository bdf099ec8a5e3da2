package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// In-memory doubles for the repository and collaborator ports.

type fakeTxnRepo struct {
	items   map[uuid.UUID]*ledger.Transaction
	lockErr error
}

func newFakeTxnRepo() *fakeTxnRepo {
	return &fakeTxnRepo{items: make(map[uuid.UUID]*ledger.Transaction)}
}

func (r *fakeTxnRepo) Save(_ context.Context, txn *ledger.Transaction) error {
	r.items[txn.GetID()] = txn
	return nil
}

func (r *fakeTxnRepo) SaveWithLock(ctx context.Context, txn *ledger.Transaction) error {
	if r.lockErr != nil {
		return r.lockErr
	}
	return r.Save(ctx, txn)
}

func (r *fakeTxnRepo) SaveAll(ctx context.Context, txns []*ledger.Transaction) error {
	for _, txn := range txns {
		r.items[txn.GetID()] = txn
	}
	return nil
}

func (r *fakeTxnRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*ledger.Transaction, error) {
	txn, ok := r.items[id]
	if !ok || txn.CompanyID != companyID {
		return nil, nil
	}
	return txn, nil
}

func (r *fakeTxnRepo) FindByApprovalToken(_ context.Context, token string) (*ledger.Transaction, error) {
	for _, txn := range r.items {
		if txn.ApprovalToken.Value == token {
			return txn, nil
		}
	}
	return nil, nil
}

func (r *fakeTxnRepo) FindByIDs(_ context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Transaction, error) {
	out := make([]*ledger.Transaction, 0, len(ids))
	for _, id := range ids {
		if txn, ok := r.items[id]; ok && txn.CompanyID == companyID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (r *fakeTxnRepo) FindByGroupID(_ context.Context, companyID, groupID uuid.UUID) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, txn := range r.items {
		if txn.CompanyID == companyID && txn.Installment != nil && txn.Installment.GroupID == groupID {
			out = append(out, txn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Installment.Number < out[j].Installment.Number
	})
	return out, nil
}

func (r *fakeTxnRepo) List(_ context.Context, companyID uuid.UUID, filter ledger.TransactionFilter) (*shared.Paginated[*ledger.Transaction], error) {
	var out []*ledger.Transaction
	for _, txn := range r.items {
		if txn.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && txn.Status != *filter.Status {
			continue
		}
		out = append(out, txn)
	}
	return shared.NewPaginated(out, int64(len(out)), 1, len(out)+1), nil
}

func (r *fakeTxnRepo) Delete(_ context.Context, companyID, id uuid.UUID) error {
	txn, ok := r.items[id]
	if !ok || txn.CompanyID != companyID {
		return shared.NewDomainError("NOT_FOUND", "Transaction not found")
	}
	delete(r.items, id)
	return nil
}

type fakeBatchRepo struct {
	items   map[uuid.UUID]*ledger.PaymentBatch
	txnRepo *fakeTxnRepo
	lockErr error
}

func newFakeBatchRepo(txnRepo *fakeTxnRepo) *fakeBatchRepo {
	return &fakeBatchRepo{items: make(map[uuid.UUID]*ledger.PaymentBatch), txnRepo: txnRepo}
}

func (r *fakeBatchRepo) Save(_ context.Context, batch *ledger.PaymentBatch) error {
	r.items[batch.GetID()] = batch
	return nil
}

func (r *fakeBatchRepo) SaveWithLock(ctx context.Context, batch *ledger.PaymentBatch) error {
	if r.lockErr != nil {
		return r.lockErr
	}
	return r.Save(ctx, batch)
}

func (r *fakeBatchRepo) SaveWithMembers(ctx context.Context, batch *ledger.PaymentBatch, txns []*ledger.Transaction) error {
	if r.lockErr != nil {
		return r.lockErr
	}
	if err := r.Save(ctx, batch); err != nil {
		return err
	}
	return r.txnRepo.SaveAll(ctx, txns)
}

func (r *fakeBatchRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*ledger.PaymentBatch, error) {
	batch, ok := r.items[id]
	if !ok || batch.CompanyID != companyID {
		return nil, nil
	}
	return batch, nil
}

func (r *fakeBatchRepo) FindByApprovalToken(_ context.Context, token string) (*ledger.PaymentBatch, error) {
	for _, batch := range r.items {
		if batch.ApprovalToken.Value == token {
			return batch, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRepo) List(_ context.Context, companyID uuid.UUID, _ ledger.BatchFilter) (*shared.Paginated[*ledger.PaymentBatch], error) {
	var out []*ledger.PaymentBatch
	for _, batch := range r.items {
		if batch.CompanyID == companyID {
			out = append(out, batch)
		}
	}
	return shared.NewPaginated(out, int64(len(out)), 1, len(out)+1), nil
}

func (r *fakeBatchRepo) Delete(_ context.Context, companyID, id uuid.UUID) error {
	batch, ok := r.items[id]
	if !ok || batch.CompanyID != companyID {
		return shared.NewDomainError("NOT_FOUND", "Payment batch not found")
	}
	delete(r.items, id)
	return nil
}

type fakeTmplRepo struct {
	items   map[uuid.UUID]*ledger.RecurringTemplate
	txnRepo *fakeTxnRepo
}

func newFakeTmplRepo(txnRepo *fakeTxnRepo) *fakeTmplRepo {
	return &fakeTmplRepo{items: make(map[uuid.UUID]*ledger.RecurringTemplate), txnRepo: txnRepo}
}

func (r *fakeTmplRepo) Save(_ context.Context, tmpl *ledger.RecurringTemplate) error {
	r.items[tmpl.GetID()] = tmpl
	return nil
}

func (r *fakeTmplRepo) SaveWithLock(ctx context.Context, tmpl *ledger.RecurringTemplate) error {
	return r.Save(ctx, tmpl)
}

func (r *fakeTmplRepo) SaveWithGenerated(ctx context.Context, tmpl *ledger.RecurringTemplate, txn *ledger.Transaction) error {
	if err := r.Save(ctx, tmpl); err != nil {
		return err
	}
	return r.txnRepo.Save(ctx, txn)
}

func (r *fakeTmplRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*ledger.RecurringTemplate, error) {
	tmpl, ok := r.items[id]
	if !ok || tmpl.CompanyID != companyID {
		return nil, nil
	}
	return tmpl, nil
}

func (r *fakeTmplRepo) FindDue(_ context.Context, now time.Time) ([]*ledger.RecurringTemplate, error) {
	var out []*ledger.RecurringTemplate
	for _, tmpl := range r.items {
		if tmpl.Active && !tmpl.NextDueDate.After(now) {
			out = append(out, tmpl)
		}
	}
	return out, nil
}

func (r *fakeTmplRepo) List(_ context.Context, companyID uuid.UUID, _ ledger.RecurringTemplateFilter) (*shared.Paginated[*ledger.RecurringTemplate], error) {
	var out []*ledger.RecurringTemplate
	for _, tmpl := range r.items {
		if tmpl.CompanyID == companyID {
			out = append(out, tmpl)
		}
	}
	return shared.NewPaginated(out, int64(len(out)), 1, len(out)+1), nil
}

func (r *fakeTmplRepo) Delete(_ context.Context, companyID, id uuid.UUID) error {
	delete(r.items, id)
	return nil
}

type fakeAuditRepo struct {
	entries []*ledger.AuditEntry
	failErr error
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *ledger.AuditEntry) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, companyID uuid.UUID, _ ledger.AuditFilter) (*shared.Paginated[*ledger.AuditEntry], error) {
	var out []*ledger.AuditEntry
	for _, e := range r.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return shared.NewPaginated(out, int64(len(out)), 1, len(out)+1), nil
}

func (r *fakeAuditRepo) actions() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}

type fakeDirectory struct {
	centers    map[uuid.UUID]CostCenterInfo
	increments int
	decrements int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{centers: make(map[uuid.UUID]CostCenterInfo)}
}

func (d *fakeDirectory) add(approverEmail string) uuid.UUID {
	id := uuid.New()
	d.centers[id] = CostCenterInfo{ID: id, Name: "Operations", ApproverEmail: approverEmail}
	return id
}

func (d *fakeDirectory) Resolve(_ context.Context, _ uuid.UUID, id uuid.UUID) (*CostCenterInfo, error) {
	info, ok := d.centers[id]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (d *fakeDirectory) IncrementUsage(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	d.increments += len(ids)
	return nil
}

func (d *fakeDirectory) DecrementUsage(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	d.decrements += len(ids)
	return nil
}

type fakeDispatcher struct {
	sent    []ApprovalRequest
	updates []StatusUpdate
	failErr error
}

func (d *fakeDispatcher) DispatchApprovalRequest(_ context.Context, req ApprovalRequest) error {
	if d.failErr != nil {
		return d.failErr
	}
	d.sent = append(d.sent, req)
	return nil
}

func (d *fakeDispatcher) DispatchStatusUpdate(_ context.Context, upd StatusUpdate) error {
	if d.failErr != nil {
		return d.failErr
	}
	d.updates = append(d.updates, upd)
	return nil
}

type fakeSweepLock struct {
	held bool
}

func (l *fakeSweepLock) Acquire(_ context.Context) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() { l.held = false }, true, nil
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
