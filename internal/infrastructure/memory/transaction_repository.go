package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo implementación en memoria de TransactionRepository.
type TransactionRepo struct {
	mu  sync.Mutex
	txs map[string]*entity.FiscalTransaction
}

// NewTransactionRepository construye el adaptador.
func NewTransactionRepository() *TransactionRepo {
	return &TransactionRepo{txs: make(map[string]*entity.FiscalTransaction)}
}

func copyTransaction(t *entity.FiscalTransaction) *entity.FiscalTransaction {
	cp := *t
	cp.AmountsByTaxRate = copyAmounts(t.AmountsByTaxRate)
	cp.AmountsByPayment = copyAmounts(t.AmountsByPayment)
	cp.AmountsByCategory = copyAmounts(t.AmountsByCategory)
	return &cp
}

func copyAmounts(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	if m == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Create persiste la transacción.
func (r *TransactionRepo) Create(_ context.Context, tx *entity.FiscalTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[tx.ID]; ok {
		return domain.ErrConflict
	}
	r.txs[tx.ID] = copyTransaction(tx)
	return nil
}

// GetByID devuelve una copia, o nil, nil si no existe.
func (r *TransactionRepo) GetByID(_ context.Context, id string) (*entity.FiscalTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(t), nil
}

// Update persiste la transición a SIGNED.
func (r *TransactionRepo) Update(_ context.Context, tx *entity.FiscalTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[tx.ID]; !ok {
		return domain.ErrNotFound
	}
	r.txs[tx.ID] = copyTransaction(tx)
	return nil
}

// ListSignedByDay lista las firmadas del día del sitio, por SignedAt ascendente.
func (r *TransactionRepo) ListSignedByDay(ctx context.Context, orgID, siteID, day string) ([]*entity.FiscalTransaction, error) {
	return r.ListSignedRange(ctx, orgID, siteID, day, day)
}

// ListSignedRange lista firmadas con día de firma dentro de [startDay, endDay].
func (r *TransactionRepo) ListSignedRange(_ context.Context, orgID, siteID string, startDay, endDay string) ([]*entity.FiscalTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FiscalTransaction
	for _, t := range r.txs {
		if t.OrgID != orgID || t.SiteID != siteID || t.Status != entity.TransactionStatusSigned || t.SignedAt == nil {
			continue
		}
		day := t.SignedAt.UTC().Format("2006-01-02")
		if day >= startDay && day <= endDay {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignedAt.Before(*out[j].SignedAt) })
	return out, nil
}
