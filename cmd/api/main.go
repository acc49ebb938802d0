package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	appfiscal "github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/fiscal"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/application/reporting"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/domain/repository"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/dsfinvk"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/memory"
	infrapdf "github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/pdf"
	"github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/postgres"
	infraredis "github.com/dave-hillier-co/darkvelocity-fiscal/internal/infrastructure/redislock"
	httpRouter "github.com/dave-hillier-co/darkvelocity-fiscal/internal/interfaces/http"
	"github.com/dave-hillier-co/darkvelocity-fiscal/pkg/config"
	"github.com/dave-hillier-co/darkvelocity-fiscal/pkg/logger"
)

// repos agrupa los puertos de persistencia; se llena con PostgreSQL o, en
// desarrollo sin DB configurada, con los adaptadores en memoria.
type repos struct {
	devices      repository.DeviceRepository
	registry     repository.DeviceRegistryRepository
	sessions     repository.TseSessionRepository
	transactions repository.TransactionRepository
	journal      repository.JournalRepository
	zreports     repository.ZReportRepository
	exports      repository.ExportRepository
	siteConfig   repository.SiteConfigRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando motor fiscal")

	ctx := context.Background()

	var r repos
	if cfg.DB.DatabaseURL != "" || cfg.DB.Host != "" {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		r = repos{
			devices:      postgres.NewDeviceRepository(pool),
			registry:     postgres.NewRegistryRepository(pool),
			sessions:     postgres.NewSessionRepository(pool),
			transactions: postgres.NewTransactionRepository(pool),
			journal:      postgres.NewJournalRepository(pool),
			zreports:     postgres.NewZReportRepository(pool),
			exports:      postgres.NewExportRepository(pool),
			siteConfig:   postgres.NewSiteConfigRepository(pool),
		}
	} else {
		// Sin DB configurada el motor corre con almacenamiento en memoria:
		// útil en desarrollo y QA, nunca para producción fiscal.
		log.Warn().Msg("DB no configurada, usando almacenamiento en memoria")
		r = repos{
			devices:      memory.NewDeviceRepository(),
			registry:     memory.NewRegistryRepository(),
			sessions:     memory.NewSessionRepository(),
			transactions: memory.NewTransactionRepository(),
			journal:      memory.NewJournalRepository(),
			zreports:     memory.NewZReportRepository(),
			exports:      memory.NewExportRepository(),
			siteConfig:   memory.NewSiteConfigRepository(),
		}
	}

	// Serialización por identidad: lock distribuido en Redis para despliegues
	// multi-instancia, serializador en proceso para instancia única.
	var locker appfiscal.IdentityLocker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = infraredis.New(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("locks distribuidos en Redis")
	} else {
		locker = appfiscal.NewKeyedLocker()
	}

	journalUC := appfiscal.NewJournalUseCase(r.journal, locker)
	deviceUC := appfiscal.NewDeviceUseCase(r.devices, r.registry, journalUC, locker)
	sessionUC := appfiscal.NewSessionUseCase(r.sessions, locker, cfg.Fiscal.Algorithm)
	transactionUC := appfiscal.NewTransactionUseCase(r.transactions, r.devices, journalUC, locker)

	// Cierre diario con artefacto PDF y exportación DSFinV-K.
	renderer := infrapdf.NewZReportRenderer(cfg.Fiscal.ExportDir)
	zreportUC := reporting.NewZReportUseCase(r.zreports, r.transactions, r.siteConfig, journalUC, locker, renderer)
	configUC := reporting.NewConfigUseCase(r.siteConfig)
	archiveBuilder := dsfinvk.NewBuilder(cfg.Fiscal.ExportDir, cfg.Fiscal.ExportEncoding)
	exportUC := reporting.NewExportUseCase(
		r.exports, r.transactions, journalUC, locker,
		archiveBuilder, log, cfg.Fiscal.ExportBaseURL,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		DeviceUC:      deviceUC,
		SessionUC:     sessionUC,
		TransactionUC: transactionUC,
		JournalUC:     journalUC,
		ZReportUC:     zreportUC,
		ConfigUC:      configUC,
		ExportUC:      exportUC,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("motor fiscal detenido")
}
