package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Códigos de error estructurados del cierre diario.
const (
	DailyCloseNotConfigured = "NOT_CONFIGURED"
)

// DailyCloseRequest día calendario (YYYY-MM-DD) a cerrar.
type DailyCloseRequest struct {
	Day string `json:"day"`
}

// DailyCloseResult resultado estructurado del cierre diario. Un sitio sin
// jurisdicción configurada obtiene success=false + NOT_CONFIGURED, no un error:
// los callers necesitan distinguir huecos de configuración de fallas transitorias.
type DailyCloseResult struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code,omitempty"`
	ReportNumber int64  `json:"report_number,omitempty"`
}

// ZReportResponse cierre diario numerado.
type ZReportResponse struct {
	ID               string          `json:"id"`
	SiteID           string          `json:"site_id"`
	Number           int64           `json:"number"`
	Date             string          `json:"date"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	TransactionCount int             `json:"transaction_count"`
	DeviceIDs        []string        `json:"device_ids,omitempty"`
	PDFPath          string          `json:"pdf_path,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreateExportRequest solicitud de exportación de auditoría por rango de fechas.
type CreateExportRequest struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Description string    `json:"description,omitempty"`
}

// ExportResponse estado del job de exportación.
type ExportResponse struct {
	ID               string     `json:"id"`
	SiteID           string     `json:"site_id"`
	Status           string     `json:"status"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	Description      string     `json:"description,omitempty"`
	RequestedBy      string     `json:"requested_by,omitempty"`
	TransactionCount int        `json:"transaction_count,omitempty"`
	FilePath         string     `json:"file_path,omitempty"`
	DownloadURL      string     `json:"download_url,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SetFiscalConfigRequest vincula la jurisdicción fiscal del sitio.
type SetFiscalConfigRequest struct {
	Jurisdiction string `json:"jurisdiction"`
	Algorithm    string `json:"algorithm"`
	Currency     string `json:"currency"`
}
