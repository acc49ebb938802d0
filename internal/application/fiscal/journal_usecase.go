package fiscal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

// JournalUseCase anexa y consulta el diario fiscal append-only. No expone
// ninguna operación de modificación o borrado: una vez anexada, la entrada es
// definitiva.
type JournalUseCase struct {
	repo   repository.JournalRepository
	locker IdentityLocker
	now    func() time.Time
}

// NewJournalUseCase construye el caso de uso. now permite inyectar reloj en tests.
func NewJournalUseCase(repo repository.JournalRepository, locker IdentityLocker) *JournalUseCase {
	return &JournalUseCase{repo: repo, locker: locker, now: time.Now}
}

// LogEvent anexa una entrada al diario del día actual de la organización.
// El timestamp lo asigna el servidor y nunca decrece dentro de un diario: si el
// reloj retrocede, se fija al timestamp de la última entrada.
func (uc *JournalUseCase) LogEvent(ctx context.Context, orgID string, in dto.LogEventRequest) error {
	if orgID == "" || in.EventType == "" {
		return domain.ErrInvalidInput
	}
	severity := in.Severity
	if severity == "" {
		severity = entity.JournalSeverityInfo
	}

	ts := uc.now().UTC()
	day := ts.Format("2006-01-02")

	return uc.locker.WithLock(ctx, "journal/"+orgID+"/"+day, func() error {
		last, err := uc.repo.LastTimestamp(ctx, orgID, day)
		if err != nil {
			return err
		}
		if ts.Before(last) {
			ts = last
		}
		return uc.repo.Append(ctx, &entity.JournalEntry{
			ID:            uuid.New().String(),
			OrgID:         orgID,
			Day:           day,
			EventType:     in.EventType,
			Severity:      severity,
			DeviceID:      in.DeviceID,
			TransactionID: in.TransactionID,
			ActorID:       in.ActorID,
			Details:       in.Details,
			IPAddress:     in.IPAddress,
			UserAgent:     in.UserAgent,
			Timestamp:     ts,
		})
	})
}

// Entries lista las entradas del día en orden de anexado.
func (uc *JournalUseCase) Entries(ctx context.Context, orgID, day string) ([]dto.JournalEntryResponse, error) {
	entries, err := uc.repo.Entries(ctx, orgID, day)
	if err != nil {
		return nil, err
	}
	return toJournalResponses(entries), nil
}

// EntryCount devuelve el número de entradas del diario del día.
func (uc *JournalUseCase) EntryCount(ctx context.Context, orgID, day string) (int, error) {
	return uc.repo.EntryCount(ctx, orgID, day)
}

// EntriesByDevice lista las entradas del día asociadas a un dispositivo.
func (uc *JournalUseCase) EntriesByDevice(ctx context.Context, orgID, day, deviceID string) ([]dto.JournalEntryResponse, error) {
	entries, err := uc.repo.EntriesByDevice(ctx, orgID, day, deviceID)
	if err != nil {
		return nil, err
	}
	return toJournalResponses(entries), nil
}

// Errors lista las entradas con severidad ERROR del día.
func (uc *JournalUseCase) Errors(ctx context.Context, orgID, day string) ([]dto.JournalEntryResponse, error) {
	entries, err := uc.repo.Errors(ctx, orgID, day)
	if err != nil {
		return nil, err
	}
	return toJournalResponses(entries), nil
}

func toJournalResponses(entries []*entity.JournalEntry) []dto.JournalEntryResponse {
	out := make([]dto.JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.JournalEntryResponse{
			ID:            e.ID,
			Day:           e.Day,
			EventType:     e.EventType,
			Severity:      e.Severity,
			DeviceID:      e.DeviceID,
			TransactionID: e.TransactionID,
			ActorID:       e.ActorID,
			Details:       e.Details,
			Timestamp:     e.Timestamp,
		})
	}
	return out
}
