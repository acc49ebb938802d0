package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// TransactionHandler maneja las peticiones HTTP de transacciones fiscales.
type TransactionHandler struct {
	uc *appfiscal.TransactionUseCase
}

// NewTransactionHandler construye el handler.
func NewTransactionHandler(uc *appfiscal.TransactionUseCase) *TransactionHandler {
	return &TransactionHandler{uc: uc}
}

// Create registra una transacción fiscal pendiente de firma.
// POST /api/transactions
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	tx, err := h.uc.Create(c.Context(), GetOrgID(c), GetSiteID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "DEVICE_NOT_FOUND", Message: "dispositivo no encontrado o inactivo"})
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tx)
}

// Sign aplica la firma exactamente una vez; un segundo intento es conflicto.
// POST /api/transactions/:id/sign
func (h *TransactionHandler) Sign(c *fiber.Ctx) error {
	var in dto.SignTransactionRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	tx, err := h.uc.Sign(c.Context(), c.Params("id"), in)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción no encontrada"})
		}
		if errors.Is(err, domain.ErrAlreadySigned) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_SIGNED", Message: "la transacción ya fue firmada"})
		}
		return internalError(c, err)
	}
	return c.JSON(tx)
}

// Get obtiene la transacción.
// GET /api/transactions/:id
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	tx, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "transacción no encontrada"})
		}
		return internalError(c, err)
	}
	return c.JSON(tx)
}

// ListSignedByDay lista las transacciones firmadas de un día del sitio.
// GET /api/transactions?day=YYYY-MM-DD
func (h *TransactionHandler) ListSignedByDay(c *fiber.Ctx) error {
	day := c.Query("day")
	if day == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "query param day requerido (YYYY-MM-DD)"})
	}
	txs, err := h.uc.ListSignedByDay(c.Context(), GetOrgID(c), GetSiteID(c), day)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(txs)
}
