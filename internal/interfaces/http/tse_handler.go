package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// TseHandler maneja las peticiones HTTP del protocolo de firma start/finish.
type TseHandler struct {
	uc *appfiscal.SessionUseCase
}

// NewTseHandler construye el handler.
func NewTseHandler(uc *appfiscal.SessionUseCase) *TseHandler {
	return &TseHandler{uc: uc}
}

// Initialize crea la sesión de firma del clientID con identidad criptográfica fija.
// POST /api/tse/initialize
func (h *TseHandler) Initialize(c *fiber.Ctx) error {
	var in dto.InitializeSessionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	snapshot, err := h.uc.Initialize(c.Context(), GetOrgID(c), GetSiteID(c), in.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyInitialized) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_INITIALIZED", Message: "la sesión ya fue inicializada"})
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(snapshot)
}

// StartTransaction abre el sobre y reserva el número de transacción.
// POST /api/tse/transactions/start
func (h *TseHandler) StartTransaction(c *fiber.Ctx) error {
	var in dto.StartTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.StartTransaction(c.Context(), GetOrgID(c), GetSiteID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_INITIALIZED", Message: "la sesión no fue inicializada"})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// FinishTransaction cierra el sobre: contador de firma, firma y QR.
// POST /api/tse/transactions/finish
func (h *TseHandler) FinishTransaction(c *fiber.Ctx) error {
	var in dto.FinishTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.FinishTransaction(c.Context(), GetOrgID(c), GetSiteID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_INITIALIZED", Message: "la sesión no fue inicializada"})
		}
		if errors.Is(err, domain.ErrNotStarted) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_STARTED", Message: "la transacción nunca fue iniciada"})
		}
		if errors.Is(err, domain.ErrAlreadyFinished) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_FINISHED", Message: "la transacción ya fue cerrada"})
		}
		return internalError(c, err)
	}
	return c.JSON(out)
}

// SelfTest ejecuta el auto-test de la sesión.
// POST /api/tse/self-test
func (h *TseHandler) SelfTest(c *fiber.Ctx) error {
	var in dto.InitializeSessionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	result, err := h.uc.SelfTest(c.Context(), GetOrgID(c), GetSiteID(c), in.ClientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_INITIALIZED", Message: "la sesión no fue inicializada"})
		}
		return internalError(c, err)
	}
	return c.JSON(result)
}

// Snapshot devuelve el estado observable de la sesión.
// GET /api/tse/:clientId
func (h *TseHandler) Snapshot(c *fiber.Ctx) error {
	snapshot, err := h.uc.Snapshot(c.Context(), GetOrgID(c), GetSiteID(c), c.Params("clientId"))
	if err != nil {
		if errors.Is(err, domain.ErrNotInitialized) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_INITIALIZED", Message: "la sesión no fue inicializada"})
		}
		return internalError(c, err)
	}
	return c.JSON(snapshot)
}
