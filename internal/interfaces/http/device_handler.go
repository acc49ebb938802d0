package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// DeviceHandler maneja las peticiones HTTP del registro de dispositivos fiscales.
type DeviceHandler struct {
	uc *appfiscal.DeviceUseCase
}

// NewDeviceHandler construye el handler.
func NewDeviceHandler(uc *appfiscal.DeviceUseCase) *DeviceHandler {
	return &DeviceHandler{uc: uc}
}

// Register da de alta un dispositivo fiscal en el sitio del token.
// POST /api/devices
func (h *DeviceHandler) Register(c *fiber.Ctx) error {
	var in dto.RegisterDeviceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	device, err := h.uc.Register(c.Context(), GetOrgID(c), GetSiteID(c), GetUserID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateSerial) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE_SERIAL", Message: "número de serie ya registrado en el sitio"})
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(device)
}

// List lista los dispositivos del sitio.
// GET /api/devices
func (h *DeviceHandler) List(c *fiber.Ctx) error {
	devices, err := h.uc.List(c.Context(), GetOrgID(c), GetSiteID(c))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(devices)
}

// Get obtiene el snapshot de un dispositivo.
// GET /api/devices/:id
func (h *DeviceHandler) Get(c *fiber.Ctx) error {
	device, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "dispositivo no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(device)
}

// Activate activa el dispositivo con su referencia tributaria.
// POST /api/devices/:id/activate
func (h *DeviceHandler) Activate(c *fiber.Ctx) error {
	var in dto.ActivateDeviceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	device, err := h.uc.Activate(c.Context(), c.Params("id"), in.TaxRegistrationRef, GetUserID(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "dispositivo no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(device)
}

// Deactivate decomisiona el dispositivo con un motivo auditable.
// POST /api/devices/:id/deactivate
func (h *DeviceHandler) Deactivate(c *fiber.Ctx) error {
	var in dto.DeactivateDeviceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	device, err := h.uc.DeactivateWithReason(c.Context(), c.Params("id"), in.Reason, GetUserID(c))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "dispositivo no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(device)
}

// SelfTest ejecuta el auto-test del dispositivo. Un certificado vencido llega
// como passed=false con 200, no como error HTTP.
// POST /api/devices/:id/self-test
func (h *DeviceHandler) SelfTest(c *fiber.Ctx) error {
	result, err := h.uc.PerformSelfTest(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "dispositivo no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(result)
}

// NextTransactionCounter emite el siguiente contador de transacción (durable).
// POST /api/devices/:id/counters/transaction
func (h *DeviceHandler) NextTransactionCounter(c *fiber.Ctx) error {
	return h.nextCounter(c, h.uc.NextTransactionCounter)
}

// NextSignatureCounter emite el siguiente contador de firma (durable).
// POST /api/devices/:id/counters/signature
func (h *DeviceHandler) NextSignatureCounter(c *fiber.Ctx) error {
	return h.nextCounter(c, h.uc.NextSignatureCounter)
}

func (h *DeviceHandler) nextCounter(c *fiber.Ctx, next func(ctx context.Context, deviceID string) (uint64, error)) error {
	value, err := next(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "dispositivo no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(dto.CounterResponse{Counter: value})
}

// internalError respuesta uniforme para errores no mapeados a la taxonomía.
func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
