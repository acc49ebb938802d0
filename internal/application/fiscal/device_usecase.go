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

// DeviceUseCase aplica las reglas del dispositivo fiscal genérico: registro,
// emisión durable de contadores, activación/decomiso y auto-test. Toda mutación
// de un dispositivo pasa por el serializador de identidad.
type DeviceUseCase struct {
	devices  repository.DeviceRepository
	registry repository.DeviceRegistryRepository
	journal  *JournalUseCase
	locker   IdentityLocker
	now      func() time.Time
}

// NewDeviceUseCase construye el caso de uso.
func NewDeviceUseCase(
	devices repository.DeviceRepository,
	registry repository.DeviceRegistryRepository,
	journal *JournalUseCase,
	locker IdentityLocker,
) *DeviceUseCase {
	return &DeviceUseCase{devices: devices, registry: registry, journal: journal, locker: locker, now: time.Now}
}

// Register da de alta un dispositivo: contadores en 0 y estado ACTIVE si llegó
// configuración de certificado válida, si no REGISTERED (inactivo). El serial
// se liga en el registro del sitio; un serial duplicado es ErrDuplicateSerial.
func (uc *DeviceUseCase) Register(ctx context.Context, orgID, siteID, actorID string, in dto.RegisterDeviceRequest) (*dto.DeviceResponse, error) {
	if in.SerialNumber == "" {
		return nil, fmt.Errorf("%w: serial_number requerido", domain.ErrInvalidInput)
	}
	if !entity.ValidDeviceType(in.Type) {
		return nil, fmt.Errorf("%w: tipo de dispositivo %q", domain.ErrInvalidInput, in.Type)
	}

	var device *entity.FiscalDevice
	err := uc.locker.WithLock(ctx, "registry/"+orgID+"/"+siteID, func() error {
		existing, err := uc.registry.FindBySerial(ctx, orgID, siteID, in.SerialNumber)
		if err != nil {
			return err
		}
		if existing != "" {
			return domain.ErrDuplicateSerial
		}

		now := uc.now().UTC()
		status := entity.DeviceStatusRegistered
		if in.PublicKey != "" {
			status = entity.DeviceStatusActive
		}
		device = &entity.FiscalDevice{
			ID:            uuid.New().String(),
			OrgID:         orgID,
			SiteID:        siteID,
			Type:          in.Type,
			SerialNumber:  in.SerialNumber,
			Status:        status,
			PublicKey:     in.PublicKey,
			CertExpiresAt: in.CertExpiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := uc.devices.Create(ctx, device); err != nil {
			return err
		}
		return uc.registry.Register(ctx, orgID, siteID, in.SerialNumber, device.ID)
	})
	if err != nil {
		return nil, err
	}

	uc.logDevice(ctx, orgID, device.ID, actorID, entity.JournalEventDeviceRegistered,
		fmt.Sprintf("dispositivo %s registrado (serial %s, estado %s)", device.Type, device.SerialNumber, device.Status))
	return toDeviceResponse(device), nil
}

// Get devuelve el snapshot del dispositivo. domain.ErrNotFound si no existe.
func (uc *DeviceUseCase) Get(ctx context.Context, id string) (*dto.DeviceResponse, error) {
	device, err := uc.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, domain.ErrNotFound
	}
	return toDeviceResponse(device), nil
}

// List lista los dispositivos del sitio.
func (uc *DeviceUseCase) List(ctx context.Context, orgID, siteID string) ([]*dto.DeviceResponse, error) {
	devices, err := uc.devices.List(ctx, orgID, siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	return out, nil
}

// FindBySerial resuelve el deviceID ligado a un serial del sitio ("" si no hay).
func (uc *DeviceUseCase) FindBySerial(ctx context.Context, orgID, siteID, serial string) (string, error) {
	return uc.registry.FindBySerial(ctx, orgID, siteID, serial)
}

// ListRegisteredIDs lista los identificadores del registro en orden de alta.
func (uc *DeviceUseCase) ListRegisteredIDs(ctx context.Context, orgID, siteID string) ([]string, error) {
	return uc.registry.ListDeviceIDs(ctx, orgID, siteID)
}

// Unregister quita el vínculo serial ↔ dispositivo del registro. El dispositivo
// mismo no se borra: la historia queda para auditoría.
func (uc *DeviceUseCase) Unregister(ctx context.Context, orgID, siteID, deviceID string) error {
	return uc.registry.Unregister(ctx, orgID, siteID, deviceID)
}

// NextTransactionCounter emite el siguiente contador de transacción. No exige
// estado ACTIVE: los contadores pueden reservarse durante el aprovisionamiento.
// Nunca se reintenta en silencio; el reintento, si aplica, es del caller.
func (uc *DeviceUseCase) NextTransactionCounter(ctx context.Context, deviceID string) (uint64, error) {
	var value uint64
	err := uc.locker.WithLock(ctx, "device/"+deviceID, func() error {
		var err error
		value, err = uc.devices.NextTransactionCounter(ctx, deviceID)
		return err
	})
	return value, err
}

// NextSignatureCounter emite el siguiente contador de firma.
func (uc *DeviceUseCase) NextSignatureCounter(ctx context.Context, deviceID string) (uint64, error) {
	var value uint64
	err := uc.locker.WithLock(ctx, "device/"+deviceID, func() error {
		var err error
		value, err = uc.devices.NextSignatureCounter(ctx, deviceID)
		return err
	})
	return value, err
}

// Activate pone el dispositivo en ACTIVE, registrando operador y referencia
// tributaria para auditoría.
func (uc *DeviceUseCase) Activate(ctx context.Context, deviceID, taxRegistrationRef, operatorID string) (*dto.DeviceResponse, error) {
	return uc.changeStatus(ctx, deviceID, operatorID, entity.JournalEventDeviceStatusChanged, func(d *entity.FiscalDevice, now time.Time) string {
		d.Status = entity.DeviceStatusActive
		d.TaxRegistrationRef = taxRegistrationRef
		d.ActivatedBy = operatorID
		return fmt.Sprintf("dispositivo activado (ref. tributaria %s)", taxRegistrationRef)
	})
}

// DeactivateWithReason pone el dispositivo en INACTIVE con motivo auditable.
func (uc *DeviceUseCase) DeactivateWithReason(ctx context.Context, deviceID, reason, operatorID string) (*dto.DeviceResponse, error) {
	return uc.changeStatus(ctx, deviceID, operatorID, entity.JournalEventDeviceDecommissioned, func(d *entity.FiscalDevice, now time.Time) string {
		d.Status = entity.DeviceStatusInactive
		d.DeactivationReason = reason
		d.DeactivatedBy = operatorID
		return "dispositivo desactivado: " + reason
	})
}

func (uc *DeviceUseCase) changeStatus(ctx context.Context, deviceID, operatorID, eventType string, mutate func(*entity.FiscalDevice, time.Time) string) (*dto.DeviceResponse, error) {
	var device *entity.FiscalDevice
	var details string
	err := uc.locker.WithLock(ctx, "device/"+deviceID, func() error {
		var err error
		device, err = uc.devices.GetByID(ctx, deviceID)
		if err != nil {
			return err
		}
		if device == nil {
			return domain.ErrNotFound
		}
		now := uc.now().UTC()
		details = mutate(device, now)
		device.UpdatedAt = now
		return uc.devices.Update(ctx, device)
	})
	if err != nil {
		return nil, err
	}
	uc.logDevice(ctx, device.OrgID, device.ID, operatorID, eventType, details)
	return toDeviceResponse(device), nil
}

// PerformSelfTest ejecuta el auto-test del dispositivo. Un certificado vencido
// se reporta como passed=false con mensaje "expired...", nunca como error: es
// una condición operativa esperada y accionable.
func (uc *DeviceUseCase) PerformSelfTest(ctx context.Context, deviceID string) (*dto.SelfTestResponse, error) {
	var result entity.SelfTestResult
	var orgID string
	err := uc.locker.WithLock(ctx, "device/"+deviceID, func() error {
		device, err := uc.devices.GetByID(ctx, deviceID)
		if err != nil {
			return err
		}
		if device == nil {
			return domain.ErrNotFound
		}
		result = device.RunSelfTest(uc.now().UTC())
		orgID = device.OrgID
		return uc.devices.Update(ctx, device)
	})
	if err != nil {
		return nil, err
	}

	severity := entity.JournalSeverityInfo
	details := "auto-test superado"
	if !result.Passed {
		severity = entity.JournalSeverityWarning
		details = "auto-test fallido: " + result.ErrorMessage
	}
	uc.logEvent(ctx, orgID, dto.LogEventRequest{
		EventType: entity.JournalEventSelfTestPerformed,
		Severity:  severity,
		DeviceID:  deviceID,
		Details:   details,
	})

	return &dto.SelfTestResponse{Passed: result.Passed, ErrorMessage: result.ErrorMessage, CheckedAt: result.CheckedAt}, nil
}

// logDevice anexa el evento de ciclo de vida al diario (best-effort: un fallo
// del diario no revierte la operación ya durable del dispositivo).
func (uc *DeviceUseCase) logDevice(ctx context.Context, orgID, deviceID, actorID, eventType, details string) {
	uc.logEvent(ctx, orgID, dto.LogEventRequest{
		EventType: eventType,
		Severity:  entity.JournalSeverityInfo,
		DeviceID:  deviceID,
		ActorID:   actorID,
		Details:   details,
	})
}

func (uc *DeviceUseCase) logEvent(ctx context.Context, orgID string, in dto.LogEventRequest) {
	if uc.journal == nil {
		return
	}
	if err := uc.journal.LogEvent(ctx, orgID, in); err != nil {
		log.Error().Err(err).
			Str("org_id", orgID).
			Str("event_type", in.EventType).
			Str("device_id", in.DeviceID).
			Msg("anexar evento de dispositivo al diario fiscal")
	}
}

func toDeviceResponse(d *entity.FiscalDevice) *dto.DeviceResponse {
	resp := &dto.DeviceResponse{
		ID:                 d.ID,
		SiteID:             d.SiteID,
		Type:               d.Type,
		SerialNumber:       d.SerialNumber,
		Status:             d.Status,
		PublicKey:          d.PublicKey,
		CertSerial:         d.CertSerial,
		CertExpiresAt:      d.CertExpiresAt,
		TransactionCounter: d.TransactionCounter,
		SignatureCounter:   d.SignatureCounter,
		CreatedAt:          d.CreatedAt,
	}
	if d.LastSelfTest != nil {
		resp.LastSelfTest = &dto.SelfTestResponse{
			Passed:       d.LastSelfTest.Passed,
			ErrorMessage: d.LastSelfTest.ErrorMessage,
			CheckedAt:    d.LastSelfTest.CheckedAt,
		}
	}
	return resp
}
