package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tu-usuario/facturador-pro/internal/application/auth"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/application/usecase"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/authority"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/authority/signer"
	infrapdf "github.com/tu-usuario/facturador-pro/internal/infrastructure/pdf"
	"github.com/tu-usuario/facturador-pro/internal/infrastructure/postgres"
	httpRouter "github.com/tu-usuario/facturador-pro/internal/interfaces/http"
	"github.com/tu-usuario/facturador-pro/pkg/config"
	"github.com/tu-usuario/facturador-pro/pkg/logger"
)

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
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	issuerRepo := postgres.NewIssuerRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	docRepo := postgres.NewFiscalDocumentRepository(pool)
	sourceRepo := postgres.NewSourceTransactionRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Certificado de firma: .p12 o par .pem; vacío = modo simulado sin firma.
	cert, err := loadCertificate(cfg.Authority)
	if err != nil {
		log.Fatal().Err(err).Msg("carga del certificado de firma")
	}
	simulate := cfg.App.Env == "development" || len(cert.Certificate) == 0
	if simulate {
		log.Warn().Msg("gateway de autoridad en modo simulado: no se contacta el WS")
	}

	soapClient := authority.NewSOAPClient()
	gateway := authority.NewGateway(
		soapClient, soapClient,
		signer.NewDigitalSignatureService(),
		cert,
		authority.GatewayConfig{
			Environment: cfg.Authority.Environment,
			Simulate:    simulate,
		},
		log,
	)

	orchestrator := issuance.NewOrchestrator(
		issuerRepo, docRepo, sourceRepo, txRunner, gateway,
		issuance.Config{
			Environment:     cfg.Authority.Environment,
			PollMaxAttempts: cfg.Authority.PollAttempts,
			PollInterval:    time.Duration(cfg.Authority.PollIntervalMS) * time.Millisecond,
		},
		log,
	)

	issuerUC := usecase.NewIssuerUseCase(issuerRepo)
	userUC := usecase.NewUserUseCase(userRepo)
	sourceUC := usecase.NewSourceTransactionUseCase(sourceRepo, txRunner)
	documentUC := usecase.NewDocumentUseCase(docRepo)
	pdfUC := issuance.NewPDFUseCase(docRepo, issuerRepo, infrapdf.NewMarotoPDFGenerator())
	authUC := auth.NewAuthUseCase(userRepo, issuerRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturador Pro API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:       authUC,
		UserUC:       userUC,
		IssuerUC:     issuerUC,
		SourceUC:     sourceUC,
		DocumentUC:   documentUC,
		PDFUC:        pdfUC,
		Orchestrator: orchestrator,
		JWTSecret:    cfg.JWT.Secret,
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

	log.Info().Msg("aplicación detenida")
}

// loadCertificate resuelve el certificado de firma según la extensión del path.
func loadCertificate(cfg config.AuthorityConfig) (tls.Certificate, error) {
	if cfg.CertPath == "" {
		return tls.Certificate{}, nil
	}
	if strings.HasSuffix(strings.ToLower(cfg.CertPath), ".p12") {
		return signer.LoadFromP12(cfg.CertPath, cfg.CertPassword)
	}
	return signer.LoadFromPEM(cfg.CertPath, cfg.CertKeyPath)
}
