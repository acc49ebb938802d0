package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.JournalRepository = (*JournalRepo)(nil)

// JournalRepo implementación en memoria del diario append-only. La estructura
// interna es un slice al que solo se anexa: no existe código que lo acorte ni
// lo reordene, la inmutabilidad es estructural.
type JournalRepo struct {
	mu      sync.Mutex
	entries map[string][]*entity.JournalEntry // clave: org + "/" + día
}

// NewJournalRepository construye el adaptador.
func NewJournalRepository() *JournalRepo {
	return &JournalRepo{entries: make(map[string][]*entity.JournalEntry)}
}

func journalKey(orgID, day string) string { return orgID + "/" + day }

// Append anexa la entrada al final del diario del día.
func (r *JournalRepo) Append(_ context.Context, entry *entity.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	key := journalKey(entry.OrgID, entry.Day)
	r.entries[key] = append(r.entries[key], &cp)
	return nil
}

// Entries devuelve copias en orden de anexado.
func (r *JournalRepo) Entries(_ context.Context, orgID, day string) ([]*entity.JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.entries[journalKey(orgID, day)]
	out := make([]*entity.JournalEntry, 0, len(stored))
	for _, e := range stored {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// EntryCount devuelve el número de entradas del diario.
func (r *JournalRepo) EntryCount(_ context.Context, orgID, day string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[journalKey(orgID, day)]), nil
}

// EntriesByDevice filtra por dispositivo, conservando el orden de anexado.
func (r *JournalRepo) EntriesByDevice(_ context.Context, orgID, day, deviceID string) ([]*entity.JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.JournalEntry
	for _, e := range r.entries[journalKey(orgID, day)] {
		if e.DeviceID == deviceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Errors filtra las entradas con severidad ERROR.
func (r *JournalRepo) Errors(_ context.Context, orgID, day string) ([]*entity.JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.JournalEntry
	for _, e := range r.entries[journalKey(orgID, day)] {
		if e.Severity == entity.JournalSeverityError {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// LastTimestamp devuelve el timestamp de la última entrada (cero si vacío).
func (r *JournalRepo) LastTimestamp(_ context.Context, orgID, day string) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.entries[journalKey(orgID, day)]
	if len(stored) == 0 {
		return time.Time{}, nil
	}
	return stored[len(stored)-1].Timestamp, nil
}
