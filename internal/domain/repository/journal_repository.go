package repository

import (
	"context"
	"time"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// JournalRepository es el puerto del diario fiscal append-only. El contrato
// público no incluye UPDATE ni DELETE: la inmutabilidad es estructural, no una
// política. El adaptador persiste cada entrada con un solo INSERT atómico; una
// entrada parcial nunca es observable.
type JournalRepository interface {
	Append(ctx context.Context, entry *entity.JournalEntry) error

	// Lecturas puras sobre la secuencia inmutable, en orden de anexado
	// (igual al orden de timestamp).
	Entries(ctx context.Context, orgID, day string) ([]*entity.JournalEntry, error)
	EntryCount(ctx context.Context, orgID, day string) (int, error)
	EntriesByDevice(ctx context.Context, orgID, day, deviceID string) ([]*entity.JournalEntry, error)
	// Errors lista las entradas con severidad ERROR.
	Errors(ctx context.Context, orgID, day string) ([]*entity.JournalEntry, error)

	// LastTimestamp devuelve el timestamp de la última entrada del diario (cero
	// si está vacío); el caso de uso lo usa para garantizar no-decrecimiento.
	LastTimestamp(ctx context.Context, orgID, day string) (time.Time, error)
}
