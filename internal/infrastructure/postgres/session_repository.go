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

var _ repository.TseSessionRepository = (*SessionRepo)(nil)

// SessionRepo implementación de TseSessionRepository sobre PostgreSQL. Sesiones
// y sobres start/finish viven en tablas separadas; el sobre referencia la sesión
// por ID y se identifica por (session_id, number).
type SessionRepo struct {
	q Querier
}

// NewSessionRepository construye el adaptador.
func NewSessionRepository(q Querier) *SessionRepo {
	return &SessionRepo{q: q}
}

const sessionColumns = `
	id, org_id, site_id, client_id, status,
	algorithm, cert_serial, public_key, key_material,
	transaction_counter, signature_counter,
	self_test_passed, self_test_error, self_test_at,
	created_at, updated_at`

// Create persiste la sesión. El índice único (org_id, site_id, client_id)
// garantiza un solo TSE por cliente dentro del sitio.
func (r *SessionRepo) Create(ctx context.Context, session *entity.TseSession) error {
	query := `
		INSERT INTO tse_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	passed, errMsg, checkedAt := selfTestColumns(session.LastSelfTest)
	_, err := r.q.Exec(ctx, query,
		session.ID, session.OrgID, session.SiteID, session.ClientID, session.Status,
		session.Algorithm, session.CertSerial, session.PublicKey, session.KeyMaterial,
		session.TransactionCounter, session.SignatureCounter,
		passed, errMsg, checkedAt,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyInitialized
		}
		return fmt.Errorf("insert tse_session: %w", err)
	}
	return nil
}

// GetByClientID obtiene la sesión del cliente, o nil, nil si no existe.
func (r *SessionRepo) GetByClientID(ctx context.Context, orgID, siteID, clientID string) (*entity.TseSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM tse_sessions WHERE org_id = $1 AND site_id = $2 AND client_id = $3`
	session, err := scanSession(r.q.QueryRow(ctx, query, orgID, siteID, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tse_session: %w", err)
	}
	return session, nil
}

// Update persiste estado y auto-test. Contadores y material de clave quedan
// fuera: los contadores solo avanzan por NextXxxCounter y la identidad
// criptográfica es fija desde Initialize.
func (r *SessionRepo) Update(ctx context.Context, session *entity.TseSession) error {
	query := `
		UPDATE tse_sessions SET
			status = $2,
			self_test_passed = $3, self_test_error = $4, self_test_at = $5,
			updated_at = $6
		WHERE id = $1`
	passed, errMsg, checkedAt := selfTestColumns(session.LastSelfTest)
	tag, err := r.q.Exec(ctx, query,
		session.ID, session.Status, passed, errMsg, checkedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tse_session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// NextTransactionCounter emite el siguiente número de transacción de la sesión.
func (r *SessionRepo) NextTransactionCounter(ctx context.Context, sessionID string) (uint64, error) {
	return r.nextCounter(ctx, sessionID, "transaction_counter")
}

// NextSignatureCounter emite el siguiente contador de firma de la sesión.
func (r *SessionRepo) NextSignatureCounter(ctx context.Context, sessionID string) (uint64, error) {
	return r.nextCounter(ctx, sessionID, "signature_counter")
}

func (r *SessionRepo) nextCounter(ctx context.Context, sessionID, column string) (uint64, error) {
	query := fmt.Sprintf(`
		UPDATE tse_sessions
		SET %s = %s + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, column, column, column)
	var value int64
	if err := r.q.QueryRow(ctx, query, sessionID).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("next session %s: %w", column, err)
	}
	return uint64(value), nil
}

// ── sobres start/finish ───────────────────────────────────────────────────────

// CreateEnvelope persiste el sobre abierto por Start.
func (r *SessionRepo) CreateEnvelope(ctx context.Context, envelope *entity.TseTransaction) error {
	query := `
		INSERT INTO tse_envelopes (
			session_id, number, process_type, process_data,
			started_at, finished_at, signature_counter, signature, qr_code_data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		envelope.SessionID, envelope.Number, envelope.ProcessType, envelope.ProcessData,
		envelope.StartedAt, envelope.FinishedAt, envelope.SignatureCounter,
		envelope.Signature, envelope.QRCodeData,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert tse_envelope: %w", err)
	}
	return nil
}

// GetEnvelope obtiene el sobre por número, o nil, nil si nunca fue iniciado.
func (r *SessionRepo) GetEnvelope(ctx context.Context, sessionID string, number uint64) (*entity.TseTransaction, error) {
	query := `
		SELECT session_id, number, process_type, process_data,
			started_at, finished_at, signature_counter, signature, qr_code_data
		FROM tse_envelopes WHERE session_id = $1 AND number = $2`
	var e entity.TseTransaction
	var num, sigCounter int64
	err := r.q.QueryRow(ctx, query, sessionID, int64(number)).Scan(
		&e.SessionID, &num, &e.ProcessType, &e.ProcessData,
		&e.StartedAt, &e.FinishedAt, &sigCounter, &e.Signature, &e.QRCodeData,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tse_envelope: %w", err)
	}
	e.Number = uint64(num)
	e.SignatureCounter = uint64(sigCounter)
	return &e, nil
}

// UpdateEnvelope persiste el cierre del sobre.
func (r *SessionRepo) UpdateEnvelope(ctx context.Context, envelope *entity.TseTransaction) error {
	query := `
		UPDATE tse_envelopes SET
			process_type = $3, process_data = $4,
			finished_at = $5, signature_counter = $6, signature = $7, qr_code_data = $8
		WHERE session_id = $1 AND number = $2`
	tag, err := r.q.Exec(ctx, query,
		envelope.SessionID, int64(envelope.Number),
		envelope.ProcessType, envelope.ProcessData,
		envelope.FinishedAt, int64(envelope.SignatureCounter),
		envelope.Signature, envelope.QRCodeData,
	)
	if err != nil {
		return fmt.Errorf("update tse_envelope: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (*entity.TseSession, error) {
	var s entity.TseSession
	var txCounter, sigCounter int64
	var passed *bool
	var errMsg *string
	var checkedAt *time.Time
	err := row.Scan(
		&s.ID, &s.OrgID, &s.SiteID, &s.ClientID, &s.Status,
		&s.Algorithm, &s.CertSerial, &s.PublicKey, &s.KeyMaterial,
		&txCounter, &sigCounter,
		&passed, &errMsg, &checkedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.TransactionCounter = uint64(txCounter)
	s.SignatureCounter = uint64(sigCounter)
	if passed != nil {
		s.LastSelfTest = &entity.SelfTestResult{Passed: *passed, CheckedAt: *checkedAt}
		if errMsg != nil {
			s.LastSelfTest.ErrorMessage = *errMsg
		}
	}
	return &s, nil
}
