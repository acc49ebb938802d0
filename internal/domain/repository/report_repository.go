package repository

import (
	"context"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// ZReportRepository persiste los cierres diarios numerados por sitio.
type ZReportRepository interface {
	// NextNumber emite el siguiente número secuencial de reporte del sitio
	// (durable antes de retornar, mismo contrato que los contadores de dispositivo).
	NextNumber(ctx context.Context, orgID, siteID string) (int64, error)
	Create(ctx context.Context, report *entity.ZReport) error
	// Latest devuelve nil, nil si aún no ha ocurrido ningún cierre.
	Latest(ctx context.Context, orgID, siteID string) (*entity.ZReport, error)
	// ByNumber devuelve nil, nil si el número no existe.
	ByNumber(ctx context.Context, orgID, siteID string, number int64) (*entity.ZReport, error)
	// Range lista reportes con fecha en [fromDay, toDay] (YYYY-MM-DD), ascendente.
	Range(ctx context.Context, orgID, siteID, fromDay, toDay string) ([]*entity.ZReport, error)
}

// ExportRepository persiste jobs de exportación de auditoría y su registro por
// sitio en orden más-reciente-primero.
type ExportRepository interface {
	Create(ctx context.Context, export *entity.AuditExport) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.AuditExport, error)
	Update(ctx context.Context, export *entity.AuditExport) error
	// ListBySite devuelve los jobs del sitio, más reciente primero.
	ListBySite(ctx context.Context, orgID, siteID string) ([]*entity.AuditExport, error)
}

// SiteConfigRepository persiste la configuración fiscal por sitio.
type SiteConfigRepository interface {
	Set(ctx context.Context, cfg *entity.SiteFiscalConfig) error
	// Get devuelve nil, nil si el sitio no tiene jurisdicción configurada.
	Get(ctx context.Context, orgID, siteID string) (*entity.SiteFiscalConfig, error)
}
