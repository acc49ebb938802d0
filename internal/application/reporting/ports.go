package reporting

import (
	"context"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
)

// ZReportRenderer genera el artefacto PDF del cierre diario y devuelve su ruta.
// Puede ser nil: el cierre sigue siendo válido sin PDF.
type ZReportRenderer interface {
	Render(report *entity.ZReport, txs []*entity.FiscalTransaction) (string, error)
}

// ExportArchive artefacto producido por el constructor de exportación.
type ExportArchive struct {
	FilePath         string
	TransactionCount int
}

// ArchiveBuilder arma el paquete de auditoría (CSV + index + manifiesto, en ZIP)
// para el rango del job. La implementación DSFinV-K vive en infraestructura.
type ArchiveBuilder interface {
	Build(ctx context.Context, export *entity.AuditExport, txs []*entity.FiscalTransaction) (*ExportArchive, error)
}
