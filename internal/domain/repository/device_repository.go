package repository

import (
	"context"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// DeviceRepository define el puerto de persistencia para dispositivos fiscales.
//
// NextTransactionCounter y NextSignatureCounter son la emisión durable de
// contadores sin huecos: el valor nuevo queda persistido ANTES de retornar, de
// modo que un crash posterior a la emisión jamás cause reutilización. Dos
// callers nunca observan el mismo valor; un hueco tampoco es posible porque el
// incremento y la persistencia son una sola operación atómica del adaptador.
type DeviceRepository interface {
	Create(ctx context.Context, device *entity.FiscalDevice) error
	// GetByID devuelve nil, nil si el dispositivo no existe.
	GetByID(ctx context.Context, id string) (*entity.FiscalDevice, error)
	// Update persiste estado, certificado y resultado de auto-test. No toca contadores.
	Update(ctx context.Context, device *entity.FiscalDevice) error
	List(ctx context.Context, orgID, siteID string) ([]*entity.FiscalDevice, error)

	// NextTransactionCounter emite el siguiente valor (previo+1, primero = 1).
	// domain.ErrNotFound si el dispositivo nunca fue registrado.
	NextTransactionCounter(ctx context.Context, id string) (uint64, error)
	NextSignatureCounter(ctx context.Context, id string) (uint64, error)
}
