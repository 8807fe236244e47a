package fiscal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/fiscal"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// memoryStore is a transactional in-memory fake: Execute serialises
// transactions, buffers writes and applies them only when fn succeeds.
type memoryStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]fiscal.Document
	sequences map[fiscal.SequenceKey]fiscal.SequenceAllocation

	failUpdateOf uuid.UUID
	failNext     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docs:      map[uuid.UUID]fiscal.Document{},
		sequences: map[fiscal.SequenceKey]fiscal.SequenceAllocation{},
	}
}

func (s *memoryStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:     s,
		writes:    map[uuid.UUID]fiscal.Document{},
		deletes:   map[uuid.UUID]bool{},
		sequences: map[fiscal.SequenceKey]fiscal.SequenceAllocation{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, d := range tx.writes {
		s.docs[id] = d
	}
	for id := range tx.deletes {
		delete(s.docs, id)
	}
	for k, v := range tx.sequences {
		s.sequences[k] = v
	}
	return nil
}

// repo returns a non-transactional view for reads outside Execute
func (s *memoryStore) repo() fiscal.DocumentRepository {
	return &lockedReader{store: s}
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *memoryStore) invoice(id uuid.UUID) *fiscal.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, _ := clone(s.docs[id]).(*fiscal.Invoice)
	return inv
}

func clone(d fiscal.Document) fiscal.Document {
	switch v := d.(type) {
	case *fiscal.Proforma:
		c := *v
		c.ClearDomainEvents()
		return &c
	case *fiscal.Invoice:
		c := *v
		c.ClearDomainEvents()
		return &c
	case *fiscal.CreditNote:
		c := *v
		c.ClearDomainEvents()
		return &c
	case *fiscal.PaymentReceipt:
		c := *v
		c.ClearDomainEvents()
		return &c
	}
	return nil
}

type memoryTx struct {
	store     *memoryStore
	writes    map[uuid.UUID]fiscal.Document
	deletes   map[uuid.UUID]bool
	sequences map[fiscal.SequenceKey]fiscal.SequenceAllocation
}

func (t *memoryTx) Documents() fiscal.DocumentRepository { return t }
func (t *memoryTx) Sequences() fiscal.SequenceAllocator  { return t }

func (t *memoryTx) Next(_ context.Context, key fiscal.SequenceKey) (fiscal.SequenceAllocation, error) {
	if t.store.failNext != nil {
		return fiscal.SequenceAllocation{}, t.store.failNext
	}
	cur, ok := t.sequences[key]
	if !ok {
		cur = t.store.sequences[key]
	}
	alloc := fiscal.SequenceAllocation{Sequence: cur.Sequence + 1, PreviousHash: cur.PreviousHash}
	t.sequences[key] = fiscal.SequenceAllocation{Sequence: alloc.Sequence, PreviousHash: cur.PreviousHash}
	return alloc, nil
}

func (t *memoryTx) RecordHash(_ context.Context, key fiscal.SequenceKey, seq int64, hash string) error {
	t.sequences[key] = fiscal.SequenceAllocation{Sequence: seq, PreviousHash: hash}
	return nil
}

func (t *memoryTx) get(tenantID, id uuid.UUID) (fiscal.Document, error) {
	if t.deletes[id] {
		return nil, shared.NewNotFoundError("document")
	}
	d, ok := t.writes[id]
	if !ok {
		d, ok = t.store.docs[id]
	}
	if !ok || d.Header().TenantID != tenantID {
		return nil, shared.NewNotFoundError("document")
	}
	return clone(d), nil
}

func (t *memoryTx) all() []fiscal.Document {
	merged := map[uuid.UUID]fiscal.Document{}
	for id, d := range t.store.docs {
		merged[id] = d
	}
	for id, d := range t.writes {
		merged[id] = d
	}
	out := make([]fiscal.Document, 0, len(merged))
	for id, d := range merged {
		if !t.deletes[id] {
			out = append(out, clone(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Header(), out[j].Header()
		if a.DocumentType != b.DocumentType {
			return a.DocumentType < b.DocumentType
		}
		return a.Sequence < b.Sequence
	})
	return out
}

func (t *memoryTx) FindByID(_ context.Context, tenantID, id uuid.UUID) (fiscal.Document, error) {
	return t.get(tenantID, id)
}

func (t *memoryTx) FindProforma(_ context.Context, tenantID, id uuid.UUID) (*fiscal.Proforma, error) {
	d, err := t.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	p, ok := d.(*fiscal.Proforma)
	if !ok {
		return nil, shared.NewNotFoundError("proforma")
	}
	return p, nil
}

func (t *memoryTx) FindInvoice(_ context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	d, err := t.get(tenantID, id)
	if err != nil {
		return nil, err
	}
	inv, ok := d.(*fiscal.Invoice)
	if !ok {
		return nil, shared.NewNotFoundError("invoice")
	}
	return inv, nil
}

func (t *memoryTx) FindInvoiceForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	return t.FindInvoice(ctx, tenantID, id)
}

func (t *memoryTx) FindAll(_ context.Context, tenantID uuid.UUID, f fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	var out []fiscal.Document
	for _, d := range t.all() {
		h := d.Header()
		if h.TenantID != tenantID || (f.Type != nil && h.DocumentType != *f.Type) || (f.Status != "" && d.StatusValue() != f.Status) {
			continue
		}
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (t *memoryTx) FindIssuedBetween(_ context.Context, tenantID uuid.UUID, start, end time.Time) ([]fiscal.Document, error) {
	var out []fiscal.Document
	for _, d := range t.all() {
		h := d.Header()
		if h.TenantID == tenantID && h.IsCertified() && !h.IssueDate.Before(start) && !h.IssueDate.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *memoryTx) FindOverdueCandidates(_ context.Context, tenantID uuid.UUID, asOf time.Time) ([]*fiscal.Invoice, error) {
	var out []*fiscal.Invoice
	for _, d := range t.all() {
		if inv, ok := d.(*fiscal.Invoice); ok && inv.TenantID == tenantID && inv.Status == fiscal.InvoiceStatusIssued && inv.DueDate.Before(asOf) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (t *memoryTx) SumCreditedAmount(_ context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, d := range t.all() {
		if cn, ok := d.(*fiscal.CreditNote); ok && cn.TenantID == tenantID && cn.OriginalInvoiceID == invoiceID {
			sum = sum.Add(cn.TotalAmount)
		}
	}
	return sum, nil
}

func (t *memoryTx) Create(_ context.Context, doc fiscal.Document) error {
	h := doc.Header()
	for _, d := range t.all() {
		o := d.Header()
		if o.TenantID == h.TenantID && o.DocumentNumber == h.DocumentNumber {
			return shared.NewDomainError(shared.CodeConcurrency, "duplicate document number "+h.DocumentNumber)
		}
	}
	t.writes[h.ID] = clone(doc)
	return nil
}

func (t *memoryTx) Update(_ context.Context, doc fiscal.Document) error {
	h := doc.Header()
	if h.ID == t.store.failUpdateOf {
		return errors.New("connection reset by peer")
	}
	if _, err := t.get(h.TenantID, h.ID); err != nil {
		return err
	}
	t.writes[h.ID] = clone(doc)
	return nil
}

func (t *memoryTx) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	if _, err := t.get(tenantID, id); err != nil {
		return err
	}
	t.deletes[id] = true
	return nil
}

// lockedReader serves reads outside a transaction
type lockedReader struct {
	store *memoryStore
}

func (r *lockedReader) tx() *memoryTx {
	return &memoryTx{store: r.store, writes: map[uuid.UUID]fiscal.Document{}, deletes: map[uuid.UUID]bool{}}
}

func (r *lockedReader) FindByID(ctx context.Context, tenantID, id uuid.UUID) (fiscal.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindByID(ctx, tenantID, id)
}

func (r *lockedReader) FindProforma(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Proforma, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindProforma(ctx, tenantID, id)
}

func (r *lockedReader) FindInvoice(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindInvoice(ctx, tenantID, id)
}

func (r *lockedReader) FindInvoiceForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*fiscal.Invoice, error) {
	return r.FindInvoice(ctx, tenantID, id)
}

func (r *lockedReader) FindAll(ctx context.Context, tenantID uuid.UUID, f fiscal.DocumentFilter) ([]fiscal.Document, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindAll(ctx, tenantID, f)
}

func (r *lockedReader) FindIssuedBetween(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]fiscal.Document, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindIssuedBetween(ctx, tenantID, start, end)
}

func (r *lockedReader) FindOverdueCandidates(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]*fiscal.Invoice, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().FindOverdueCandidates(ctx, tenantID, asOf)
}

func (r *lockedReader) SumCreditedAmount(ctx context.Context, tenantID, invoiceID uuid.UUID) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.tx().SumCreditedAmount(ctx, tenantID, invoiceID)
}

func (r *lockedReader) Create(context.Context, fiscal.Document) error {
	return errors.New("writes must go through Execute")
}

func (r *lockedReader) Update(context.Context, fiscal.Document) error {
	return errors.New("writes must go through Execute")
}

func (r *lockedReader) Delete(context.Context, uuid.UUID, uuid.UUID) error {
	return errors.New("writes must go through Execute")
}
