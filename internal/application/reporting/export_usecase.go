package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
	"github.com/dave-hillier-co/darkvelocity-fiscal/pkg/logger"
)

// ExportUseCase orquesta los jobs de exportación de auditoría:
//
//	PENDING → PROCESSING → (COMPLETED | FAILED)
//
// El procesamiento corre siempre en goroutine independiente (ProcessAsync) con
// su propio context.Background() + timeout, desacoplado del ciclo HTTP. Ambos
// estados finales son terminales: una transición posterior es ErrTerminalState.
type ExportUseCase struct {
	exports      repository.ExportRepository
	transactions repository.TransactionRepository
	journal      *appfiscal.JournalUseCase
	locker       appfiscal.IdentityLocker
	builder      ArchiveBuilder
	log          *logger.Logger
	baseURL      string
	timeout      time.Duration
	now          func() time.Time
}

// NewExportUseCase construye el orquestador con todas sus dependencias.
// baseURL es el prefijo público de descarga de los artefactos generados.
func NewExportUseCase(
	exports repository.ExportRepository,
	transactions repository.TransactionRepository,
	journal *appfiscal.JournalUseCase,
	locker appfiscal.IdentityLocker,
	builder ArchiveBuilder,
	log *logger.Logger,
	baseURL string,
) *ExportUseCase {
	return &ExportUseCase{
		exports:      exports,
		transactions: transactions,
		journal:      journal,
		locker:       locker,
		builder:      builder,
		log:          log,
		baseURL:      baseURL,
		timeout:      2 * time.Minute,
		now:          time.Now,
	}
}

// Create registra el job PENDING y dispara su procesamiento asíncrono.
func (uc *ExportUseCase) Create(ctx context.Context, orgID, siteID, requestedBy string, in dto.CreateExportRequest) (*dto.ExportResponse, error) {
	if in.EndDate.Before(in.StartDate) {
		return nil, fmt.Errorf("%w: end_date anterior a start_date", domain.ErrInvalidInput)
	}

	export := &entity.AuditExport{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		SiteID:      siteID,
		Status:      entity.ExportStatusPending,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Description: in.Description,
		RequestedBy: requestedBy,
		CreatedAt:   uc.now().UTC(),
	}
	if err := uc.exports.Create(ctx, export); err != nil {
		return nil, err
	}

	uc.ProcessAsync(export.ID)
	return toExportResponse(export), nil
}

// Get devuelve el estado del job. domain.ErrNotFound si no existe.
func (uc *ExportUseCase) Get(ctx context.Context, id string) (*dto.ExportResponse, error) {
	export, err := uc.exports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if export == nil {
		return nil, domain.ErrNotFound
	}
	return toExportResponse(export), nil
}

// ListBySite lista los jobs del sitio, más reciente primero.
func (uc *ExportUseCase) ListBySite(ctx context.Context, orgID, siteID string) ([]*dto.ExportResponse, error) {
	exports, err := uc.exports.ListBySite(ctx, orgID, siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.ExportResponse, 0, len(exports))
	for _, e := range exports {
		out = append(out, toExportResponse(e))
	}
	return out, nil
}

// ProcessAsync dispara el procesamiento en una goroutine independiente.
// exportID es el ID del job ya persistido en estado PENDING.
func (uc *ExportUseCase) ProcessAsync(exportID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), uc.timeout)
		defer cancel()
		uc.Process(ctx, exportID)
	}()
}

// Process es el núcleo síncrono del orquestador. Siempre termina dejando el job
// en COMPLETED o FAILED (salvo si el job desapareció o ya era terminal).
func (uc *ExportUseCase) Process(ctx context.Context, exportID string) {
	_ = uc.locker.WithLock(ctx, "export/"+exportID, func() error {
		// Re-fetch datos frescos (evita data races con el goroutine HTTP).
		export, err := uc.exports.GetByID(ctx, exportID)
		if err != nil || export == nil {
			uc.logError(exportID, "fetch", err)
			return nil
		}
		if err := export.MarkProcessing(); err != nil {
			uc.log.Warn().Str("export_id", exportID).Str("status", export.Status).
				Msg("job en estado inesperado, saltando")
			return nil
		}
		if err := uc.exports.Update(ctx, export); err != nil {
			uc.logError(exportID, "mark-processing", err)
			return nil
		}

		startDay := export.StartDate.UTC().Format("2006-01-02")
		endDay := export.EndDate.UTC().Format("2006-01-02")
		txs, err := uc.transactions.ListSignedRange(ctx, export.OrgID, export.SiteID, startDay, endDay)
		if err != nil {
			uc.fail(ctx, export, "gather", err)
			return nil
		}

		archive, err := uc.builder.Build(ctx, export, txs)
		if err != nil {
			uc.fail(ctx, export, "build", err)
			return nil
		}

		now := uc.now().UTC()
		downloadURL := uc.baseURL + "/" + export.ID + ".zip"
		if err := export.MarkCompleted(archive.TransactionCount, archive.FilePath, downloadURL, now); err != nil {
			uc.logError(exportID, "mark-completed", err)
			return nil
		}
		if err := uc.exports.Update(ctx, export); err != nil {
			uc.logError(exportID, "persist-completed", err)
			return nil
		}

		uc.journalEvent(ctx, export.OrgID, entity.JournalEventExportGenerated, entity.JournalSeverityInfo,
			fmt.Sprintf("exportación %s completada (%d transacciones, %s..%s)",
				export.ID, archive.TransactionCount, startDay, endDay))
		uc.log.Info().Str("export_id", export.ID).Int("transactions", archive.TransactionCount).
			Str("file", archive.FilePath).Msg("exportación completada")
		return nil
	})
}

// fail deja el job en FAILED con el mensaje legible y lo registra en el diario.
func (uc *ExportUseCase) fail(ctx context.Context, export *entity.AuditExport, step string, cause error) {
	msg := fmt.Sprintf("%s: %v", step, cause)
	if err := export.MarkFailed(msg, uc.now().UTC()); err != nil {
		uc.logError(export.ID, "mark-failed", err)
		return
	}
	if err := uc.exports.Update(ctx, export); err != nil {
		uc.logError(export.ID, "persist-failed", err)
		return
	}
	uc.journalEvent(ctx, export.OrgID, entity.JournalEventError, entity.JournalSeverityError,
		fmt.Sprintf("exportación %s falló en %s: %v", export.ID, step, cause))
	uc.log.Error().Str("export_id", export.ID).Str("step", step).Err(cause).
		Msg("exportación fallida")
}

func (uc *ExportUseCase) journalEvent(ctx context.Context, orgID, eventType, severity, details string) {
	if uc.journal == nil {
		return
	}
	err := uc.journal.LogEvent(ctx, orgID, dto.LogEventRequest{
		EventType: eventType,
		Severity:  severity,
		Details:   details,
	})
	if err != nil {
		uc.log.Error().Err(err).
			Str("org_id", orgID).
			Str("event_type", eventType).
			Msg("anexar evento de exportación al diario fiscal")
	}
}

func (uc *ExportUseCase) logError(exportID, step string, err error) {
	uc.log.Error().Str("export_id", exportID).Str("step", step).Err(err).
		Msg("orquestador de exportación")
}

func toExportResponse(e *entity.AuditExport) *dto.ExportResponse {
	return &dto.ExportResponse{
		ID:               e.ID,
		SiteID:           e.SiteID,
		Status:           e.Status,
		StartDate:        e.StartDate,
		EndDate:          e.EndDate,
		Description:      e.Description,
		RequestedBy:      e.RequestedBy,
		TransactionCount: e.TransactionCount,
		FilePath:         e.FilePath,
		DownloadURL:      e.DownloadURL,
		ErrorMessage:     e.ErrorMessage,
		CreatedAt:        e.CreatedAt,
		CompletedAt:      e.CompletedAt,
	}
}
