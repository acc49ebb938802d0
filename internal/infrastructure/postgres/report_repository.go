package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

var (
	_ repository.ZReportRepository    = (*ZReportRepo)(nil)
	_ repository.ExportRepository     = (*ExportRepo)(nil)
	_ repository.SiteConfigRepository = (*SiteConfigRepo)(nil)
)

// ZReportRepo implementación de ZReportRepository sobre PostgreSQL. El número
// secuencial del reporte vive en z_report_counters: un upsert con RETURNING
// emite y persiste el número en la misma operación, sin huecos ni repetidos
// aunque dos cierres compitan.
type ZReportRepo struct {
	q Querier
}

// NewZReportRepository construye el adaptador.
func NewZReportRepository(q Querier) *ZReportRepo {
	return &ZReportRepo{q: q}
}

// NextNumber emite el siguiente número de reporte del sitio.
func (r *ZReportRepo) NextNumber(ctx context.Context, orgID, siteID string) (int64, error) {
	query := `
		INSERT INTO z_report_counters (org_id, site_id, counter)
		VALUES ($1, $2, 1)
		ON CONFLICT (org_id, site_id)
			DO UPDATE SET counter = z_report_counters.counter + 1
		RETURNING counter`
	var number int64
	if err := r.q.QueryRow(ctx, query, orgID, siteID).Scan(&number); err != nil {
		return 0, fmt.Errorf("next z-report number: %w", err)
	}
	return number, nil
}

const zreportColumns = `
	id, org_id, site_id, number, report_date,
	gross_total, transaction_count, device_ids, pdf_path, created_at`

// Create persiste el cierre diario.
func (r *ZReportRepo) Create(ctx context.Context, report *entity.ZReport) error {
	query := `
		INSERT INTO z_reports (` + zreportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		report.ID, report.OrgID, report.SiteID, report.Number, report.Date,
		report.GrossTotal, report.TransactionCount, report.DeviceIDs,
		report.PDFPath, report.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert z_report: %w", err)
	}
	return nil
}

// Latest devuelve el cierre más reciente del sitio, o nil, nil si no hay ninguno.
func (r *ZReportRepo) Latest(ctx context.Context, orgID, siteID string) (*entity.ZReport, error) {
	query := `SELECT ` + zreportColumns + `
		FROM z_reports WHERE org_id = $1 AND site_id = $2
		ORDER BY number DESC LIMIT 1`
	return r.getOne(ctx, query, orgID, siteID)
}

// ByNumber devuelve el cierre por número, o nil, nil si no existe.
func (r *ZReportRepo) ByNumber(ctx context.Context, orgID, siteID string, number int64) (*entity.ZReport, error) {
	query := `SELECT ` + zreportColumns + `
		FROM z_reports WHERE org_id = $1 AND site_id = $2 AND number = $3`
	return r.getOne(ctx, query, orgID, siteID, number)
}

// Range lista cierres con fecha dentro de [fromDay, toDay], ascendente por número.
func (r *ZReportRepo) Range(ctx context.Context, orgID, siteID, fromDay, toDay string) ([]*entity.ZReport, error) {
	query := `SELECT ` + zreportColumns + `
		FROM z_reports
		WHERE org_id = $1 AND site_id = $2 AND report_date BETWEEN $3 AND $4
		ORDER BY number`
	rows, err := r.q.Query(ctx, query, orgID, siteID, fromDay, toDay)
	if err != nil {
		return nil, fmt.Errorf("list z_reports: %w", err)
	}
	defer rows.Close()

	var list []*entity.ZReport
	for rows.Next() {
		report, err := scanZReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan z_report: %w", err)
		}
		list = append(list, report)
	}
	return list, rows.Err()
}

func (r *ZReportRepo) getOne(ctx context.Context, query string, args ...any) (*entity.ZReport, error) {
	report, err := scanZReport(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get z_report: %w", err)
	}
	return report, nil
}

func scanZReport(row pgx.Row) (*entity.ZReport, error) {
	var z entity.ZReport
	err := row.Scan(
		&z.ID, &z.OrgID, &z.SiteID, &z.Number, &z.Date,
		&z.GrossTotal, &z.TransactionCount, &z.DeviceIDs, &z.PDFPath, &z.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// ── jobs de exportación ───────────────────────────────────────────────────────

// ExportRepo implementación de ExportRepository sobre PostgreSQL.
type ExportRepo struct {
	q Querier
}

// NewExportRepository construye el adaptador.
func NewExportRepository(q Querier) *ExportRepo {
	return &ExportRepo{q: q}
}

const exportColumns = `
	id, org_id, site_id, status, start_date, end_date,
	description, requested_by,
	transaction_count, file_path, download_url, error_message,
	created_at, completed_at`

// Create persiste el job recién creado (PENDING).
func (r *ExportRepo) Create(ctx context.Context, export *entity.AuditExport) error {
	query := `
		INSERT INTO audit_exports (` + exportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		export.ID, export.OrgID, export.SiteID, export.Status,
		export.StartDate, export.EndDate, export.Description, export.RequestedBy,
		export.TransactionCount, export.FilePath, export.DownloadURL, export.ErrorMessage,
		export.CreatedAt, export.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert audit_export: %w", err)
	}
	return nil
}

// GetByID obtiene el job, o nil, nil si no existe.
func (r *ExportRepo) GetByID(ctx context.Context, id string) (*entity.AuditExport, error) {
	query := `SELECT ` + exportColumns + ` FROM audit_exports WHERE id = $1`
	export, err := scanExport(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit_export: %w", err)
	}
	return export, nil
}

// Update persiste las transiciones del job (PROCESSING, COMPLETED, FAILED).
func (r *ExportRepo) Update(ctx context.Context, export *entity.AuditExport) error {
	query := `
		UPDATE audit_exports SET
			status = $2, transaction_count = $3, file_path = $4,
			download_url = $5, error_message = $6, completed_at = $7
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		export.ID, export.Status, export.TransactionCount, export.FilePath,
		export.DownloadURL, export.ErrorMessage, export.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update audit_export: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListBySite lista los jobs del sitio, más reciente primero.
func (r *ExportRepo) ListBySite(ctx context.Context, orgID, siteID string) ([]*entity.AuditExport, error) {
	query := `SELECT ` + exportColumns + `
		FROM audit_exports WHERE org_id = $1 AND site_id = $2
		ORDER BY created_at DESC, id DESC`
	rows, err := r.q.Query(ctx, query, orgID, siteID)
	if err != nil {
		return nil, fmt.Errorf("list audit_exports: %w", err)
	}
	defer rows.Close()

	var list []*entity.AuditExport
	for rows.Next() {
		export, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit_export: %w", err)
		}
		list = append(list, export)
	}
	return list, rows.Err()
}

func scanExport(row pgx.Row) (*entity.AuditExport, error) {
	var e entity.AuditExport
	err := row.Scan(
		&e.ID, &e.OrgID, &e.SiteID, &e.Status, &e.StartDate, &e.EndDate,
		&e.Description, &e.RequestedBy,
		&e.TransactionCount, &e.FilePath, &e.DownloadURL, &e.ErrorMessage,
		&e.CreatedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ── configuración fiscal por sitio ────────────────────────────────────────────

// SiteConfigRepo implementación de SiteConfigRepository sobre PostgreSQL.
type SiteConfigRepo struct {
	q Querier
}

// NewSiteConfigRepository construye el adaptador.
func NewSiteConfigRepository(q Querier) *SiteConfigRepo {
	return &SiteConfigRepo{q: q}
}

// Set crea o reemplaza la configuración fiscal del sitio.
func (r *SiteConfigRepo) Set(ctx context.Context, cfg *entity.SiteFiscalConfig) error {
	query := `
		INSERT INTO site_fiscal_configs (org_id, site_id, jurisdiction, algorithm, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, site_id)
			DO UPDATE SET jurisdiction = $3, algorithm = $4, currency = $5, updated_at = $6`
	_, err := r.q.Exec(ctx, query,
		cfg.OrgID, cfg.SiteID, cfg.Jurisdiction, cfg.Algorithm, cfg.Currency, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set site_fiscal_config: %w", err)
	}
	return nil
}

// Get obtiene la configuración del sitio, o nil, nil si no está configurado.
func (r *SiteConfigRepo) Get(ctx context.Context, orgID, siteID string) (*entity.SiteFiscalConfig, error) {
	query := `
		SELECT org_id, site_id, jurisdiction, algorithm, currency, updated_at
		FROM site_fiscal_configs WHERE org_id = $1 AND site_id = $2`
	var cfg entity.SiteFiscalConfig
	err := r.q.QueryRow(ctx, query, orgID, siteID).Scan(
		&cfg.OrgID, &cfg.SiteID, &cfg.Jurisdiction, &cfg.Algorithm, &cfg.Currency, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get site_fiscal_config: %w", err)
	}
	return &cfg, nil
}
