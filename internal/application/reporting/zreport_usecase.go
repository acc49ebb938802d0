package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

// ZReportUseCase ejecuta el cierre diario por sitio y las consultas sobre los
// reportes emitidos. El número de reporte es secuencial por sitio y lo asigna
// únicamente el cierre; las consultas antes del primer cierre devuelven vacío.
type ZReportUseCase struct {
	reports      repository.ZReportRepository
	transactions repository.TransactionRepository
	siteConfig   repository.SiteConfigRepository
	journal      *appfiscal.JournalUseCase
	locker       appfiscal.IdentityLocker
	renderer     ZReportRenderer
	now          func() time.Time
}

// NewZReportUseCase construye el caso de uso. renderer puede ser nil: el cierre
// se completa sin artefacto PDF.
func NewZReportUseCase(
	reports repository.ZReportRepository,
	transactions repository.TransactionRepository,
	siteConfig repository.SiteConfigRepository,
	journal *appfiscal.JournalUseCase,
	locker appfiscal.IdentityLocker,
	renderer ZReportRenderer,
) *ZReportUseCase {
	return &ZReportUseCase{
		reports:      reports,
		transactions: transactions,
		siteConfig:   siteConfig,
		journal:      journal,
		locker:       locker,
		renderer:     renderer,
		now:          time.Now,
	}
}

// PerformDailyClose cierra el día indicado (YYYY-MM-DD) del sitio. Un sitio sin
// jurisdicción configurada obtiene el resultado estructurado NOT_CONFIGURED, no
// un error: los callers distinguen huecos de configuración de fallas reales.
func (uc *ZReportUseCase) PerformDailyClose(ctx context.Context, orgID, siteID, day string) (*dto.DailyCloseResult, error) {
	cfg, err := uc.siteConfig.Get(ctx, orgID, siteID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &dto.DailyCloseResult{Success: false, ErrorCode: dto.DailyCloseNotConfigured}, nil
	}

	var number int64
	err = uc.locker.WithLock(ctx, "zreport/"+orgID+"/"+siteID, func() error {
		txs, err := uc.transactions.ListSignedByDay(ctx, orgID, siteID, day)
		if err != nil {
			return err
		}

		gross := decimal.Zero
		seen := make(map[string]bool)
		var deviceIDs []string
		for _, tx := range txs {
			gross = gross.Add(tx.GrossAmount)
			if !seen[tx.DeviceID] {
				seen[tx.DeviceID] = true
				deviceIDs = append(deviceIDs, tx.DeviceID)
			}
		}

		number, err = uc.reports.NextNumber(ctx, orgID, siteID)
		if err != nil {
			return err
		}
		report := &entity.ZReport{
			ID:               uuid.New().String(),
			OrgID:            orgID,
			SiteID:           siteID,
			Number:           number,
			Date:             day,
			GrossTotal:       gross,
			TransactionCount: len(txs),
			DeviceIDs:        deviceIDs,
			CreatedAt:        uc.now().UTC(),
		}

		// El PDF es un artefacto derivado: su falla no invalida el cierre, pero
		// queda registrada en el diario.
		if uc.renderer != nil {
			path, renderErr := uc.renderer.Render(report, txs)
			if renderErr != nil {
				uc.logEvent(ctx, orgID, entity.JournalSeverityWarning, entity.JournalEventError,
					fmt.Sprintf("PDF del cierre %d no generado: %v", number, renderErr))
			} else {
				report.PDFPath = path
			}
		}

		return uc.reports.Create(ctx, report)
	})
	if err != nil {
		return nil, err
	}

	uc.logEvent(ctx, orgID, entity.JournalSeverityInfo, entity.JournalEventExportGenerated,
		fmt.Sprintf("cierre diario %d del día %s (sitio %s)", number, day, siteID))
	return &dto.DailyCloseResult{Success: true, ReportNumber: number}, nil
}

// Latest devuelve el último cierre del sitio, o nil sin error si nunca hubo uno.
func (uc *ZReportUseCase) Latest(ctx context.Context, orgID, siteID string) (*dto.ZReportResponse, error) {
	report, err := uc.reports.Latest(ctx, orgID, siteID)
	if err != nil || report == nil {
		return nil, err
	}
	return toZReportResponse(report), nil
}

// ByNumber devuelve el cierre con ese número, o nil sin error si no existe.
func (uc *ZReportUseCase) ByNumber(ctx context.Context, orgID, siteID string, number int64) (*dto.ZReportResponse, error) {
	report, err := uc.reports.ByNumber(ctx, orgID, siteID, number)
	if err != nil || report == nil {
		return nil, err
	}
	return toZReportResponse(report), nil
}

// Range lista los cierres con fecha dentro de [fromDay, toDay], ascendente.
func (uc *ZReportUseCase) Range(ctx context.Context, orgID, siteID, fromDay, toDay string) ([]*dto.ZReportResponse, error) {
	reports, err := uc.reports.Range(ctx, orgID, siteID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ZReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, toZReportResponse(r))
	}
	return out, nil
}

func (uc *ZReportUseCase) logEvent(ctx context.Context, orgID, severity, eventType, details string) {
	if uc.journal == nil {
		return
	}
	err := uc.journal.LogEvent(ctx, orgID, dto.LogEventRequest{
		EventType: eventType,
		Severity:  severity,
		Details:   details,
	})
	if err != nil {
		log.Error().Err(err).
			Str("org_id", orgID).
			Str("event_type", eventType).
			Msg("anexar evento de cierre diario al diario fiscal")
	}
}

func toZReportResponse(r *entity.ZReport) *dto.ZReportResponse {
	return &dto.ZReportResponse{
		ID:               r.ID,
		SiteID:           r.SiteID,
		Number:           r.Number,
		Date:             r.Date,
		GrossTotal:       r.GrossTotal,
		TransactionCount: r.TransactionCount,
		DeviceIDs:        r.DeviceIDs,
		PDFPath:          r.PDFPath,
		CreatedAt:        r.CreatedAt,
	}
}
