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

var _ repository.DeviceRepository = (*DeviceRepo)(nil)

// DeviceRepo implementación de DeviceRepository sobre PostgreSQL (usable con pool o tx).
//
// Los contadores viven en la fila del dispositivo y se emiten con un único
// UPDATE ... RETURNING: incremento y persistencia son la misma operación, por lo
// que ni un crash ni dos callers concurrentes pueden producir huecos o repetidos.
type DeviceRepo struct {
	q Querier
}

// NewDeviceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDeviceRepository(q Querier) *DeviceRepo {
	return &DeviceRepo{q: q}
}

const deviceColumns = `
	id, org_id, site_id, type, serial_number, status,
	public_key, cert_serial, cert_expires_at,
	transaction_counter, signature_counter,
	self_test_passed, self_test_error, self_test_at,
	activated_by, tax_registration_ref, deactivated_by, deactivation_reason,
	created_at, updated_at`

// Create persiste un dispositivo nuevo con contadores en 0.
func (r *DeviceRepo) Create(ctx context.Context, device *entity.FiscalDevice) error {
	query := `
		INSERT INTO fiscal_devices (` + deviceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	passed, errMsg, checkedAt := selfTestColumns(device.LastSelfTest)
	_, err := r.q.Exec(ctx, query,
		device.ID, device.OrgID, device.SiteID, device.Type, device.SerialNumber, device.Status,
		device.PublicKey, device.CertSerial, device.CertExpiresAt,
		device.TransactionCounter, device.SignatureCounter,
		passed, errMsg, checkedAt,
		device.ActivatedBy, device.TaxRegistrationRef, device.DeactivatedBy, device.DeactivationReason,
		device.CreatedAt, device.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert fiscal_device: %w", err)
	}
	return nil
}

// GetByID obtiene el dispositivo, o nil, nil si no existe.
func (r *DeviceRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDevice, error) {
	query := `SELECT ` + deviceColumns + ` FROM fiscal_devices WHERE id = $1`
	device, err := scanDevice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal_device: %w", err)
	}
	return device, nil
}

// Update persiste estado, certificado y auto-test. Los contadores no se tocan:
// solo los emiten NextTransactionCounter/NextSignatureCounter.
func (r *DeviceRepo) Update(ctx context.Context, device *entity.FiscalDevice) error {
	query := `
		UPDATE fiscal_devices SET
			status = $2, public_key = $3, cert_serial = $4, cert_expires_at = $5,
			self_test_passed = $6, self_test_error = $7, self_test_at = $8,
			activated_by = $9, tax_registration_ref = $10,
			deactivated_by = $11, deactivation_reason = $12,
			updated_at = $13
		WHERE id = $1`
	passed, errMsg, checkedAt := selfTestColumns(device.LastSelfTest)
	tag, err := r.q.Exec(ctx, query,
		device.ID, device.Status, device.PublicKey, device.CertSerial, device.CertExpiresAt,
		passed, errMsg, checkedAt,
		device.ActivatedBy, device.TaxRegistrationRef,
		device.DeactivatedBy, device.DeactivationReason,
		device.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update fiscal_device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List lista los dispositivos del sitio en orden de alta.
func (r *DeviceRepo) List(ctx context.Context, orgID, siteID string) ([]*entity.FiscalDevice, error) {
	query := `SELECT ` + deviceColumns + `
		FROM fiscal_devices WHERE org_id = $1 AND site_id = $2 ORDER BY created_at`
	rows, err := r.q.Query(ctx, query, orgID, siteID)
	if err != nil {
		return nil, fmt.Errorf("list fiscal_devices: %w", err)
	}
	defer rows.Close()

	var list []*entity.FiscalDevice
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal_device: %w", err)
		}
		list = append(list, device)
	}
	return list, rows.Err()
}

// NextTransactionCounter emite el siguiente contador de transacción.
func (r *DeviceRepo) NextTransactionCounter(ctx context.Context, id string) (uint64, error) {
	return r.nextCounter(ctx, id, "transaction_counter")
}

// NextSignatureCounter emite el siguiente contador de firma.
func (r *DeviceRepo) NextSignatureCounter(ctx context.Context, id string) (uint64, error) {
	return r.nextCounter(ctx, id, "signature_counter")
}

func (r *DeviceRepo) nextCounter(ctx context.Context, id, column string) (uint64, error) {
	// column proviene de un conjunto fijo interno, nunca de entrada del usuario.
	query := fmt.Sprintf(`
		UPDATE fiscal_devices
		SET %s = %s + 1, updated_at = now()
		WHERE id = $1
		RETURNING %s`, column, column, column)
	var value int64
	if err := r.q.QueryRow(ctx, query, id).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("next %s: %w", column, err)
	}
	return uint64(value), nil
}

// ── helpers de mapeo ──────────────────────────────────────────────────────────

func selfTestColumns(st *entity.SelfTestResult) (passed *bool, errMsg *string, checkedAt *time.Time) {
	if st == nil {
		return nil, nil, nil
	}
	return &st.Passed, &st.ErrorMessage, &st.CheckedAt
}

func scanDevice(row pgx.Row) (*entity.FiscalDevice, error) {
	var d entity.FiscalDevice
	var txCounter, sigCounter int64
	var passed *bool
	var errMsg *string
	var checkedAt *time.Time
	err := row.Scan(
		&d.ID, &d.OrgID, &d.SiteID, &d.Type, &d.SerialNumber, &d.Status,
		&d.PublicKey, &d.CertSerial, &d.CertExpiresAt,
		&txCounter, &sigCounter,
		&passed, &errMsg, &checkedAt,
		&d.ActivatedBy, &d.TaxRegistrationRef, &d.DeactivatedBy, &d.DeactivationReason,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.TransactionCounter = uint64(txCounter)
	d.SignatureCounter = uint64(sigCounter)
	if passed != nil {
		d.LastSelfTest = &entity.SelfTestResult{Passed: *passed, CheckedAt: *checkedAt}
		if errMsg != nil {
			d.LastSelfTest.ErrorMessage = *errMsg
		}
	}
	return &d, nil
}
