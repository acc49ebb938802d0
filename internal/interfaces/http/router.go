package http

import (
	"github.com/gofiber/fiber/v2"

	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	DeviceUC      *appfiscal.DeviceUseCase
	SessionUC     *appfiscal.SessionUseCase
	TransactionUC *appfiscal.TransactionUseCase
	JournalUC     *appfiscal.JournalUseCase
	ZReportUC     *reporting.ZReportUseCase
	ConfigUC      *reporting.ConfigUseCase
	ExportUC      *reporting.ExportUseCase
	JWTSecret     string
}

// Router registra las rutas de la API. Toda la superficie fiscal exige Bearer
// Token con org_id y site_id; el alcance multi-tenant sale del token, nunca de
// la petición.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	// El ciclo de vida de dispositivos y la configuración del sitio son
	// operaciones administrativas; consultas y firma quedan para cualquier rol.
	adminOnly := RequireRole("admin", "manager")

	// Dispositivos fiscales
	devices := api.Group("/devices")
	deviceHandler := NewDeviceHandler(deps.DeviceUC)
	devices.Post("/", adminOnly, deviceHandler.Register)
	devices.Get("/", deviceHandler.List)
	devices.Get("/:id", deviceHandler.Get)
	devices.Post("/:id/activate", adminOnly, deviceHandler.Activate)
	devices.Post("/:id/deactivate", adminOnly, deviceHandler.Deactivate)
	devices.Post("/:id/self-test", deviceHandler.SelfTest)
	devices.Post("/:id/counters/transaction", deviceHandler.NextTransactionCounter)
	devices.Post("/:id/counters/signature", deviceHandler.NextSignatureCounter)

	// Sesión de firma TSE (protocolo start/finish)
	tse := api.Group("/tse")
	tseHandler := NewTseHandler(deps.SessionUC)
	tse.Post("/initialize", tseHandler.Initialize)
	tse.Post("/transactions/start", tseHandler.StartTransaction)
	tse.Post("/transactions/finish", tseHandler.FinishTransaction)
	tse.Post("/self-test", tseHandler.SelfTest)
	tse.Get("/:clientId", tseHandler.Snapshot)

	// Transacciones fiscales
	transactions := api.Group("/transactions")
	transactionHandler := NewTransactionHandler(deps.TransactionUC)
	transactions.Post("/", transactionHandler.Create)
	transactions.Get("/", transactionHandler.ListSignedByDay)
	transactions.Get("/:id", transactionHandler.Get)
	transactions.Post("/:id/sign", transactionHandler.Sign)

	// Diario fiscal
	journal := api.Group("/journal")
	journalHandler := NewJournalHandler(deps.JournalUC)
	journal.Post("/", journalHandler.LogEvent)
	journal.Get("/:day", journalHandler.Entries)
	journal.Get("/:day/errors", journalHandler.Errors)
	journal.Get("/:day/devices/:deviceId", journalHandler.EntriesByDevice)

	// Cierres diarios y configuración fiscal del sitio.
	// "latest" y "daily-close" se registran antes de ":number".
	reports := api.Group("/reports")
	reportHandler := NewReportHandler(deps.ZReportUC, deps.ConfigUC)
	reports.Post("/daily-close", reportHandler.DailyClose)
	reports.Get("/", reportHandler.Range)
	reports.Get("/latest", reportHandler.Latest)
	reports.Get("/:number", reportHandler.ByNumber)

	api.Put("/fiscal-config", adminOnly, reportHandler.SetConfig)
	api.Get("/fiscal-config", reportHandler.GetConfig)

	// Exportaciones de auditoría
	exports := api.Group("/exports")
	exportHandler := NewExportHandler(deps.ExportUC)
	exports.Post("/", RequireRole("admin", "manager", "auditor"), exportHandler.Create)
	exports.Get("/", exportHandler.List)
	exports.Get("/:id", exportHandler.Get)
}
