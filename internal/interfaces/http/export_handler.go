package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// ExportHandler maneja las peticiones HTTP de exportaciones de auditoría.
type ExportHandler struct {
	uc *reporting.ExportUseCase
}

// NewExportHandler construye el handler.
func NewExportHandler(uc *reporting.ExportUseCase) *ExportHandler {
	return &ExportHandler{uc: uc}
}

// Create registra el job y dispara el procesamiento asíncrono; la respuesta
// llega en PENDING y el caller consulta el progreso con Get.
// POST /api/exports
func (h *ExportHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateExportRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	export, err := h.uc.Create(c.Context(), GetOrgID(c), GetSiteID(c), GetUserID(c), in)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(export)
}

// Get consulta el estado del job.
// GET /api/exports/:id
func (h *ExportHandler) Get(c *fiber.Ctx) error {
	export, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "export no encontrado"})
		}
		return internalError(c, err)
	}
	return c.JSON(export)
}

// List lista los jobs del sitio, más reciente primero.
// GET /api/exports
func (h *ExportHandler) List(c *fiber.Ctx) error {
	exports, err := h.uc.ListBySite(c.Context(), GetOrgID(c), GetSiteID(c))
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(exports)
}
