package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/dto"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain"
)

// ReportHandler maneja las peticiones HTTP de cierres diarios (Z-Reports) y de
// la configuración fiscal del sitio.
type ReportHandler struct {
	zreports *reporting.ZReportUseCase
	config   *reporting.ConfigUseCase
}

// NewReportHandler construye el handler.
func NewReportHandler(zreports *reporting.ZReportUseCase, config *reporting.ConfigUseCase) *ReportHandler {
	return &ReportHandler{zreports: zreports, config: config}
}

// DailyClose ejecuta el cierre del día indicado. Un sitio sin jurisdicción
// configurada obtiene success=false + NOT_CONFIGURED con 200: es un resultado
// estructurado, no un error.
// POST /api/reports/daily-close
func (h *ReportHandler) DailyClose(c *fiber.Ctx) error {
	var in dto.DailyCloseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Day == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "day requerido (YYYY-MM-DD)"})
	}
	result, err := h.zreports.PerformDailyClose(c.Context(), GetOrgID(c), GetSiteID(c), in.Day)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.JSON(result)
}

// Latest devuelve el cierre más reciente del sitio; 404 antes del primer cierre.
// GET /api/reports/latest
func (h *ReportHandler) Latest(c *fiber.Ctx) error {
	report, err := h.zreports.Latest(c.Context(), GetOrgID(c), GetSiteID(c))
	if err != nil {
		return internalError(c, err)
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "aún no hay cierres en el sitio"})
	}
	return c.JSON(report)
}

// ByNumber devuelve el cierre por su número secuencial.
// GET /api/reports/:number
func (h *ReportHandler) ByNumber(c *fiber.Ctx) error {
	number, err := strconv.ParseInt(c.Params("number"), 10, 64)
	if err != nil || number < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "número de reporte inválido"})
	}
	report, err := h.zreports.ByNumber(c.Context(), GetOrgID(c), GetSiteID(c), number)
	if err != nil {
		return internalError(c, err)
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "reporte no encontrado"})
	}
	return c.JSON(report)
}

// Range lista cierres con fecha dentro de [from, to], ascendente.
// GET /api/reports?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ReportHandler) Range(c *fiber.Ctx) error {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "query params from y to requeridos (YYYY-MM-DD)"})
	}
	reports, err := h.zreports.Range(c.Context(), GetOrgID(c), GetSiteID(c), from, to)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(reports)
}

// SetConfig vincula la jurisdicción fiscal del sitio.
// PUT /api/fiscal-config
func (h *ReportHandler) SetConfig(c *fiber.Ctx) error {
	var in dto.SetFiscalConfigRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.config.Set(c.Context(), GetOrgID(c), GetSiteID(c), in); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrUnknownAlgorithm) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		return internalError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetConfig devuelve la configuración fiscal del sitio; 404 si no fue definida.
// GET /api/fiscal-config
func (h *ReportHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.config.Get(c.Context(), GetOrgID(c), GetSiteID(c))
	if err != nil {
		return internalError(c, err)
	}
	if cfg == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_CONFIGURED", Message: "el sitio no tiene jurisdicción configurada"})
	}
	return c.JSON(dto.SetFiscalConfigRequest{
		Jurisdiction: cfg.Jurisdiction,
		Algorithm:    cfg.Algorithm,
		Currency:     cfg.Currency,
	})
}
