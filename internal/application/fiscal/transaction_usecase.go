package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/entity"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
)

// TransactionUseCase gestiona el ciclo CREATED → SIGNED de las transacciones
// fiscales. El firmado es exactamente-una-vez: la segunda aplicación sobre la
// misma transacción es ErrAlreadySigned, sin importar quién llegue primero.
type TransactionUseCase struct {
	transactions repository.TransactionRepository
	devices      repository.DeviceRepository
	journal      *JournalUseCase
	locker       IdentityLocker
	now          func() time.Time
}

// NewTransactionUseCase construye el caso de uso.
func NewTransactionUseCase(
	transactions repository.TransactionRepository,
	devices repository.DeviceRepository,
	journal *JournalUseCase,
	locker IdentityLocker,
) *TransactionUseCase {
	return &TransactionUseCase{transactions: transactions, devices: devices, journal: journal, locker: locker, now: time.Now}
}

// Create registra la transacción contra un dispositivo existente y no
// desactivado. Un dispositivo ausente o INACTIVE produce ErrDeviceNotFound.
func (uc *TransactionUseCase) Create(ctx context.Context, orgID, siteID string, in dto.CreateTransactionRequest) (*dto.TransactionResponse, error) {
	if in.Type == "" {
		return nil, fmt.Errorf("%w: type requerido", domain.ErrInvalidInput)
	}
	device, err := uc.devices.GetByID(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}
	if device == nil || device.OrgID != orgID || device.Status == entity.DeviceStatusInactive {
		return nil, domain.ErrDeviceNotFound
	}

	now := uc.now().UTC()
	tx := &entity.FiscalTransaction{
		ID:                uuid.New().String(),
		OrgID:             orgID,
		SiteID:            siteID,
		DeviceID:          in.DeviceID,
		Type:              in.Type,
		ProcessType:       in.ProcessType,
		SourceRef:         in.SourceRef,
		GrossAmount:       in.GrossAmount,
		AmountsByTaxRate:  in.AmountsByTaxRate,
		AmountsByPayment:  in.AmountsByPayment,
		AmountsByCategory: in.AmountsByCategory,
		Status:            entity.TransactionStatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	uc.logTx(ctx, tx, entity.JournalEventTransactionCreated,
		fmt.Sprintf("transacción %s creada (bruto %s)", tx.Type, tx.GrossAmount.StringFixed(2)))
	return toTransactionResponse(tx), nil
}

// Sign aplica los campos de firma exactamente una vez. La serialización por
// transacción garantiza que de dos llamadas concurrentes una gana y la otra
// recibe ErrAlreadySigned.
func (uc *TransactionUseCase) Sign(ctx context.Context, txID string, in dto.SignTransactionRequest) (*dto.TransactionResponse, error) {
	var tx *entity.FiscalTransaction
	err := uc.locker.WithLock(ctx, "fiscal-tx/"+txID, func() error {
		var err error
		tx, err = uc.transactions.GetByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx == nil {
			return domain.ErrNotFound
		}
		now := uc.now().UTC()
		if err := tx.ApplySignature(in.Signature, in.SignatureCounter, in.CertSerial, in.QRCodeData, in.RawPayload, now); err != nil {
			return err
		}
		return uc.transactions.Update(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	eventType := entity.JournalEventTransactionSigned
	details := fmt.Sprintf("transacción firmada (contador de firma %d)", tx.SignatureCounter)
	if tx.Type == entity.TransactionTypeVoid {
		eventType = entity.JournalEventTransactionVoided
		details = fmt.Sprintf("anulación firmada (contador de firma %d)", tx.SignatureCounter)
	}
	uc.logTx(ctx, tx, eventType, details)
	return toTransactionResponse(tx), nil
}

// Get devuelve el snapshot de la transacción. domain.ErrNotFound si no existe.
func (uc *TransactionUseCase) Get(ctx context.Context, txID string) (*dto.TransactionResponse, error) {
	tx, err := uc.transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, domain.ErrNotFound
	}
	return toTransactionResponse(tx), nil
}

// ListSignedByDay lista las transacciones firmadas del día del sitio.
func (uc *TransactionUseCase) ListSignedByDay(ctx context.Context, orgID, siteID, day string) ([]*dto.TransactionResponse, error) {
	txs, err := uc.transactions.ListSignedByDay(ctx, orgID, siteID, day)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out, nil
}

func (uc *TransactionUseCase) logTx(ctx context.Context, tx *entity.FiscalTransaction, eventType, details string) {
	if uc.journal == nil {
		return
	}
	err := uc.journal.LogEvent(ctx, tx.OrgID, dto.LogEventRequest{
		EventType:     eventType,
		Severity:      entity.JournalSeverityInfo,
		DeviceID:      tx.DeviceID,
		TransactionID: tx.ID,
		Details:       details,
	})
	if err != nil {
		log.Error().Err(err).
			Str("org_id", tx.OrgID).
			Str("transaction_id", tx.ID).
			Str("event_type", eventType).
			Msg("anexar evento de transacción al diario fiscal")
	}
}

func toTransactionResponse(tx *entity.FiscalTransaction) *dto.TransactionResponse {
	return &dto.TransactionResponse{
		ID:                tx.ID,
		SiteID:            tx.SiteID,
		DeviceID:          tx.DeviceID,
		Type:              tx.Type,
		ProcessType:       tx.ProcessType,
		SourceRef:         tx.SourceRef,
		GrossAmount:       tx.GrossAmount,
		AmountsByTaxRate:  tx.AmountsByTaxRate,
		AmountsByPayment:  tx.AmountsByPayment,
		AmountsByCategory: tx.AmountsByCategory,
		Status:            tx.Status,
		Signature:         tx.Signature,
		SignatureCounter:  tx.SignatureCounter,
		CertSerial:        tx.CertSerial,
		QRCodeData:        tx.QRCodeData,
		SignedAt:          tx.SignedAt,
		CreatedAt:         tx.CreatedAt,
	}
}
