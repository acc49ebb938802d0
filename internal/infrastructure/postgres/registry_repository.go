package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var _ repository.DeviceRegistryRepository = (*RegistryRepo)(nil)

// RegistryRepo implementación de DeviceRegistryRepository sobre PostgreSQL.
// El índice único (org_id, site_id, serial_number) es quien hace cumplir la
// unicidad del serial: dos registros concurrentes del mismo serial con
// dispositivos distintos terminan en un 23505, nunca en dos filas.
type RegistryRepo struct {
	q Querier
}

// NewRegistryRepository construye el adaptador.
func NewRegistryRepository(q Querier) *RegistryRepo {
	return &RegistryRepo{q: q}
}

// Register liga el serial al dispositivo dentro del (org, site). Re-registrar
// el mismo par es idempotente; un serial ya ligado a otro dispositivo falla
// con ErrDuplicateSerial.
func (r *RegistryRepo) Register(ctx context.Context, orgID, siteID, serialNumber, deviceID string) error {
	query := `
		INSERT INTO device_registry (org_id, site_id, serial_number, device_id, registered_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (org_id, site_id, serial_number)
			DO NOTHING`
	tag, err := r.q.Exec(ctx, query, orgID, siteID, serialNumber, deviceID)
	if err != nil {
		return fmt.Errorf("register serial: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// El serial ya existe: leer a quién pertenece para distinguir idempotencia
	// de colisión real.
	existing, err := r.FindBySerial(ctx, orgID, siteID, serialNumber)
	if err != nil {
		return err
	}
	if existing != deviceID {
		return domain.ErrDuplicateSerial
	}
	return nil
}

// FindBySerial devuelve el identificador del dispositivo, o "" si el serial no
// está registrado en el sitio.
func (r *RegistryRepo) FindBySerial(ctx context.Context, orgID, siteID, serialNumber string) (string, error) {
	query := `
		SELECT device_id FROM device_registry
		WHERE org_id = $1 AND site_id = $2 AND serial_number = $3`
	var deviceID string
	if err := r.q.QueryRow(ctx, query, orgID, siteID, serialNumber).Scan(&deviceID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find serial: %w", err)
	}
	return deviceID, nil
}

// Unregister elimina el vínculo del dispositivo; no es error que no exista.
func (r *RegistryRepo) Unregister(ctx context.Context, orgID, siteID, deviceID string) error {
	query := `DELETE FROM device_registry WHERE org_id = $1 AND site_id = $2 AND device_id = $3`
	if _, err := r.q.Exec(ctx, query, orgID, siteID, deviceID); err != nil {
		return fmt.Errorf("unregister device: %w", err)
	}
	return nil
}

// ListDeviceIDs lista los identificadores en orden de registro.
func (r *RegistryRepo) ListDeviceIDs(ctx context.Context, orgID, siteID string) ([]string, error) {
	query := `
		SELECT device_id FROM device_registry
		WHERE org_id = $1 AND site_id = $2
		ORDER BY registered_at, device_id`
	rows, err := r.q.Query(ctx, query, orgID, siteID)
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
