package repository

import (
	"context"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// TseSessionRepository persiste sesiones de firma TSE y sus sobres start/finish.
// Los contadores siguen el mismo contrato durable que DeviceRepository, pero en
// un espacio de numeración propio de la sesión.
type TseSessionRepository interface {
	Create(ctx context.Context, session *entity.TseSession) error
	// GetByClientID devuelve nil, nil si la sesión no existe.
	GetByClientID(ctx context.Context, orgID, siteID, clientID string) (*entity.TseSession, error)
	// Update persiste estado y auto-test. No toca contadores ni material de clave.
	Update(ctx context.Context, session *entity.TseSession) error

	NextTransactionCounter(ctx context.Context, sessionID string) (uint64, error)
	NextSignatureCounter(ctx context.Context, sessionID string) (uint64, error)

	CreateEnvelope(ctx context.Context, envelope *entity.TseTransaction) error
	// GetEnvelope devuelve nil, nil si el número nunca fue iniciado.
	GetEnvelope(ctx context.Context, sessionID string, number uint64) (*entity.TseTransaction, error)
	// UpdateEnvelope persiste el cierre del sobre (firma, QR, fin).
	UpdateEnvelope(ctx context.Context, envelope *entity.TseTransaction) error
}
