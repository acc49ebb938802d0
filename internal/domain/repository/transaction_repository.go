package repository

import (
	"context"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// TransactionRepository persiste transacciones fiscales.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.FiscalTransaction) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.FiscalTransaction, error)
	// Update persiste la transición a SIGNED con todos los campos de firma.
	Update(ctx context.Context, tx *entity.FiscalTransaction) error
	// ListSignedByDay lista las transacciones firmadas de un día (YYYY-MM-DD) del sitio.
	ListSignedByDay(ctx context.Context, orgID, siteID, day string) ([]*entity.FiscalTransaction, error)
	// ListSignedRange lista firmadas con SignedAt dentro de [start, end] del sitio.
	ListSignedRange(ctx context.Context, orgID, siteID string, startDay, endDay string) ([]*entity.FiscalTransaction, error)
}
