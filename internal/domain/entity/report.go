package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// ZReport es el cierre diario numerado secuencialmente por sitio. El número lo
// asigna la operación de cierre; consultar antes del primer cierre devuelve
// vacío, nunca error.
type ZReport struct {
	ID     string
	OrgID  string
	SiteID string
	Number int64
	Date   string // YYYY-MM-DD del día cerrado

	GrossTotal       decimal.Decimal
	TransactionCount int
	DeviceIDs        []string

	// Ruta del artefacto PDF generado en el cierre (vacío si no se generó).
	PDFPath string

	CreatedAt time.Time
}

// Estados del job de exportación: PENDING → PROCESSING → (COMPLETED | FAILED).
// COMPLETED y FAILED son terminales e inmutables.
const (
	ExportStatusPending    = "PENDING"
	ExportStatusProcessing = "PROCESSING"
	ExportStatusCompleted  = "COMPLETED"
	ExportStatusFailed     = "FAILED"
)

// AuditExport es un job de extracción por jurisdicción (ej. DSFinV-K) sobre un
// rango de fechas, registrado por sitio en orden más-reciente-primero.
type AuditExport struct {
	ID          string
	OrgID       string
	SiteID      string
	Status      string
	StartDate   time.Time
	EndDate     time.Time
	Description string
	RequestedBy string

	// Poblado al completar.
	TransactionCount int
	FilePath         string
	DownloadURL      string

	// Poblado al fallar.
	ErrorMessage string

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Terminal indica si el job ya alcanzó COMPLETED o FAILED.
func (e *AuditExport) Terminal() bool {
	return e.Status == ExportStatusCompleted || e.Status == ExportStatusFailed
}

// MarkProcessing transiciona PENDING → PROCESSING.
func (e *AuditExport) MarkProcessing() error {
	if e.Terminal() {
		return domain.ErrTerminalState
	}
	if e.Status != ExportStatusPending {
		return domain.ErrConflict
	}
	e.Status = ExportStatusProcessing
	return nil
}

// MarkCompleted transiciona a COMPLETED con el conteo y la ubicación del artefacto.
func (e *AuditExport) MarkCompleted(transactionCount int, filePath, downloadURL string, now time.Time) error {
	if e.Terminal() {
		return domain.ErrTerminalState
	}
	e.Status = ExportStatusCompleted
	e.TransactionCount = transactionCount
	e.FilePath = filePath
	e.DownloadURL = downloadURL
	e.CompletedAt = &now
	return nil
}

// MarkFailed transiciona a FAILED con el mensaje legible del error.
func (e *AuditExport) MarkFailed(errorMessage string, now time.Time) error {
	if e.Terminal() {
		return domain.ErrTerminalState
	}
	e.Status = ExportStatusFailed
	e.ErrorMessage = errorMessage
	e.CompletedAt = &now
	return nil
}

// Jurisdicciones fiscales soportadas por el cierre diario multi-país.
const (
	JurisdictionDE = "DE_KASSENSICHV" // Alemania: KassenSichV / DSFinV-K
	JurisdictionAT = "AT_RKSV"        // Austria: RKSV
	JurisdictionFR = "FR_NF525"       // Francia: NF 525
	JurisdictionPL = "PL_KSEF"        // Polonia: JPK / KSeF
)

// ValidJurisdiction verifica pertenencia al conjunto cerrado.
func ValidJurisdiction(j string) bool {
	switch j {
	case JurisdictionDE, JurisdictionAT, JurisdictionFR, JurisdictionPL:
		return true
	}
	return false
}

// SiteFiscalConfig vincula un sitio con su jurisdicción fiscal. Sin esta
// configuración el cierre diario es imposible (NOT_CONFIGURED).
type SiteFiscalConfig struct {
	OrgID        string
	SiteID       string
	Jurisdiction string
	Algorithm    string // identificador del algoritmo de firma (lista cerrada)
	Currency     string
	UpdatedAt    time.Time
}
