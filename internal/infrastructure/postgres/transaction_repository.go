package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo implementación de TransactionRepository sobre PostgreSQL.
// Los desgloses de monto (por tarifa, medio de pago y categoría) se almacenan
// como JSONB: son mapas de cardinalidad variable que nunca se consultan por
// clave individual, solo se leen completos junto con la transacción.
type TransactionRepo struct {
	q Querier
}

// NewTransactionRepository construye el adaptador.
func NewTransactionRepository(q Querier) *TransactionRepo {
	return &TransactionRepo{q: q}
}

const transactionColumns = `
	id, org_id, site_id, device_id, type, process_type, source_ref,
	gross_amount, amounts_by_tax_rate, amounts_by_payment, amounts_by_category,
	status, signature, signature_counter, cert_serial, qr_code_data, raw_payload,
	signed_at, created_at, updated_at`

// Create persiste la transacción recién creada (estado CREATED, sin firma).
func (r *TransactionRepo) Create(ctx context.Context, tx *entity.FiscalTransaction) error {
	query := `
		INSERT INTO fiscal_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	byTax, byPayment, byCategory, err := encodeAmountMaps(tx)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, query,
		tx.ID, tx.OrgID, tx.SiteID, tx.DeviceID, tx.Type, tx.ProcessType, tx.SourceRef,
		tx.GrossAmount, byTax, byPayment, byCategory,
		tx.Status, tx.Signature, int64(tx.SignatureCounter), tx.CertSerial,
		tx.QRCodeData, tx.RawPayload,
		tx.SignedAt, tx.CreatedAt, tx.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert fiscal_transaction: %w", err)
	}
	return nil
}

// GetByID obtiene la transacción, o nil, nil si no existe.
func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*entity.FiscalTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM fiscal_transactions WHERE id = $1`
	tx, err := scanTransaction(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_transaction: %w", err)
	}
	return tx, nil
}

// Update persiste la transición a SIGNED con todos los campos de firma.
func (r *TransactionRepo) Update(ctx context.Context, tx *entity.FiscalTransaction) error {
	query := `
		UPDATE fiscal_transactions SET
			status = $2, signature = $3, signature_counter = $4, cert_serial = $5,
			qr_code_data = $6, raw_payload = $7, signed_at = $8, updated_at = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		tx.ID, tx.Status, tx.Signature, int64(tx.SignatureCounter), tx.CertSerial,
		tx.QRCodeData, tx.RawPayload, tx.SignedAt, tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fiscal_transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSignedByDay lista las transacciones firmadas del día (YYYY-MM-DD), en
// orden de firma.
func (r *TransactionRepo) ListSignedByDay(ctx context.Context, orgID, siteID, day string) ([]*entity.FiscalTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM fiscal_transactions
		WHERE org_id = $1 AND site_id = $2 AND status = $3
			AND to_char(signed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $4
		ORDER BY signed_at`
	return r.listSigned(ctx, query, orgID, siteID, entity.TransactionStatusSigned, day)
}

// ListSignedRange lista las firmadas con día de firma dentro de [startDay, endDay].
func (r *TransactionRepo) ListSignedRange(ctx context.Context, orgID, siteID string, startDay, endDay string) ([]*entity.FiscalTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM fiscal_transactions
		WHERE org_id = $1 AND site_id = $2 AND status = $3
			AND to_char(signed_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') BETWEEN $4 AND $5
		ORDER BY signed_at`
	return r.listSigned(ctx, query, orgID, siteID, entity.TransactionStatusSigned, startDay, endDay)
}

func (r *TransactionRepo) listSigned(ctx context.Context, query string, args ...any) ([]*entity.FiscalTransaction, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_transactions: %w", err)
	}
	defer rows.Close()

	var list []*entity.FiscalTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal_transaction: %w", err)
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}

// ── helpers de mapeo JSONB ────────────────────────────────────────────────────

func encodeAmountMaps(tx *entity.FiscalTransaction) (byTax, byPayment, byCategory []byte, err error) {
	if byTax, err = json.Marshal(tx.AmountsByTaxRate); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal amounts_by_tax_rate: %w", err)
	}
	if byPayment, err = json.Marshal(tx.AmountsByPayment); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal amounts_by_payment: %w", err)
	}
	if byCategory, err = json.Marshal(tx.AmountsByCategory); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal amounts_by_category: %w", err)
	}
	return byTax, byPayment, byCategory, nil
}

func scanTransaction(row pgx.Row) (*entity.FiscalTransaction, error) {
	var t entity.FiscalTransaction
	var byTax, byPayment, byCategory []byte
	var sigCounter int64
	err := row.Scan(
		&t.ID, &t.OrgID, &t.SiteID, &t.DeviceID, &t.Type, &t.ProcessType, &t.SourceRef,
		&t.GrossAmount, &byTax, &byPayment, &byCategory,
		&t.Status, &t.Signature, &sigCounter, &t.CertSerial, &t.QRCodeData, &t.RawPayload,
		&t.SignedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SignatureCounter = uint64(sigCounter)
	if t.AmountsByTaxRate, err = decodeAmountMap(byTax); err != nil {
		return nil, fmt.Errorf("unmarshal amounts_by_tax_rate: %w", err)
	}
	if t.AmountsByPayment, err = decodeAmountMap(byPayment); err != nil {
		return nil, fmt.Errorf("unmarshal amounts_by_payment: %w", err)
	}
	if t.AmountsByCategory, err = decodeAmountMap(byCategory); err != nil {
		return nil, fmt.Errorf("unmarshal amounts_by_category: %w", err)
	}
	return &t, nil
}

func decodeAmountMap(raw []byte) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]decimal.Decimal
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
