package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.JournalRepository = (*JournalRepo)(nil)

// JournalRepo implementación del diario fiscal append-only sobre PostgreSQL.
// Cada entrada es un único INSERT; el adaptador no expone UPDATE ni DELETE
// sobre la tabla, igual que el puerto.
type JournalRepo struct {
	q Querier
}

// NewJournalRepository construye el adaptador.
func NewJournalRepository(q Querier) *JournalRepo {
	return &JournalRepo{q: q}
}

const journalColumns = `
	id, org_id, day, event_type, severity,
	device_id, transaction_id, actor_id, details,
	ip_address, user_agent, ts`

// Append anexa la entrada con un solo INSERT atómico.
func (r *JournalRepo) Append(ctx context.Context, entry *entity.JournalEntry) error {
	query := `
		INSERT INTO fiscal_journal (` + journalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.OrgID, entry.Day, entry.EventType, entry.Severity,
		entry.DeviceID, entry.TransactionID, entry.ActorID, entry.Details,
		entry.IPAddress, entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Entries lista las entradas del diario (org, día) en orden de anexado.
func (r *JournalRepo) Entries(ctx context.Context, orgID, day string) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM fiscal_journal WHERE org_id = $1 AND day = $2 ORDER BY ts, id`
	return r.list(ctx, query, orgID, day)
}

// EntryCount cuenta las entradas del diario (org, día).
func (r *JournalRepo) EntryCount(ctx context.Context, orgID, day string) (int, error) {
	query := `SELECT count(*) FROM fiscal_journal WHERE org_id = $1 AND day = $2`
	var count int
	if err := r.q.QueryRow(ctx, query, orgID, day).Scan(&count); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}

// EntriesByDevice filtra el diario por dispositivo.
func (r *JournalRepo) EntriesByDevice(ctx context.Context, orgID, day, deviceID string) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM fiscal_journal
		WHERE org_id = $1 AND day = $2 AND device_id = $3
		ORDER BY ts, id`
	return r.list(ctx, query, orgID, day, deviceID)
}

// Errors lista las entradas con severidad ERROR.
func (r *JournalRepo) Errors(ctx context.Context, orgID, day string) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + `
		FROM fiscal_journal
		WHERE org_id = $1 AND day = $2 AND severity = $3
		ORDER BY ts, id`
	return r.list(ctx, query, orgID, day, entity.JournalSeverityError)
}

// LastTimestamp devuelve el timestamp de la última entrada del diario, o el
// valor cero si el diario está vacío.
func (r *JournalRepo) LastTimestamp(ctx context.Context, orgID, day string) (time.Time, error) {
	query := `SELECT ts FROM fiscal_journal WHERE org_id = $1 AND day = $2 ORDER BY ts DESC LIMIT 1`
	var ts time.Time
	if err := r.q.QueryRow(ctx, query, orgID, day).Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("last journal timestamp: %w", err)
	}
	return ts, nil
}

func (r *JournalRepo) list(ctx context.Context, query string, args ...any) ([]*entity.JournalEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var list []*entity.JournalEntry
	for rows.Next() {
		var e entity.JournalEntry
		err := rows.Scan(
			&e.ID, &e.OrgID, &e.Day, &e.EventType, &e.Severity,
			&e.DeviceID, &e.TransactionID, &e.ActorID, &e.Details,
			&e.IPAddress, &e.UserAgent, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
