package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// JournalHandler maneja las peticiones HTTP del diario fiscal (solo lectura más
// anexado; el diario no expone modificación ni borrado).
type JournalHandler struct {
	uc *appfiscal.JournalUseCase
}

// NewJournalHandler construye el handler.
func NewJournalHandler(uc *appfiscal.JournalUseCase) *JournalHandler {
	return &JournalHandler{uc: uc}
}

// LogEvent anexa una entrada operativa al diario del día en curso.
// POST /api/journal
func (h *JournalHandler) LogEvent(c *fiber.Ctx) error {
	var in dto.LogEventRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.ActorID == "" {
		in.ActorID = GetUserID(c)
	}
	if in.IPAddress == "" {
		in.IPAddress = c.IP()
	}
	if in.UserAgent == "" {
		in.UserAgent = c.Get("User-Agent")
	}
	if err := h.uc.LogEvent(c.Context(), GetOrgID(c), in); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.SendStatus(fiber.StatusCreated)
}

// Entries lista el diario de un día en orden de anexado.
// GET /api/journal/:day
func (h *JournalHandler) Entries(c *fiber.Ctx) error {
	entries, err := h.uc.Entries(c.Context(), GetOrgID(c), c.Params("day"))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(entries)
}

// Errors lista las entradas con severidad ERROR de un día.
// GET /api/journal/:day/errors
func (h *JournalHandler) Errors(c *fiber.Ctx) error {
	entries, err := h.uc.Errors(c.Context(), GetOrgID(c), c.Params("day"))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(entries)
}

// EntriesByDevice filtra el diario de un día por dispositivo.
// GET /api/journal/:day/devices/:deviceId
func (h *JournalHandler) EntriesByDevice(c *fiber.Ctx) error {
	entries, err := h.uc.EntriesByDevice(c.Context(), GetOrgID(c), c.Params("day"), c.Params("deviceId"))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(entries)
}
