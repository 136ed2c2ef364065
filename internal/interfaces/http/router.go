package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/facturador-pro/internal/application/auth"
	"github.com/tu-usuario/facturador-pro/internal/application/issuance"
	"github.com/tu-usuario/facturador-pro/internal/application/usecase"
	"github.com/tu-usuario/facturador-pro/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC       *auth.AuthUseCase
	UserUC       *usecase.UserUseCase
	IssuerUC     *usecase.IssuerUseCase
	SourceUC     *usecase.SourceTransactionUseCase
	DocumentUC   *usecase.DocumentUseCase
	PDFUC        *issuance.PDFUseCase
	Orchestrator *issuance.Orchestrator
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Issuers: lectura para cualquier rol autenticado; escritura solo admin
	issuers := protected.Group("/issuers")
	issuerHandler := NewIssuerHandler(deps.IssuerUC)
	issuers.Get("/", issuerHandler.List)
	issuers.Get("/:id", issuerHandler.GetByID)
	issuers.Get("/:id/series", issuerHandler.ListSeries)
	issuers.Post("/", RequireRole(), issuerHandler.Create)
	issuers.Put("/:id", RequireRole(), issuerHandler.Update)
	issuers.Post("/:id/series", RequireRole(), issuerHandler.CreateSeries)

	// Transacciones de origen: registro y emisión requieren rol operador
	sources := protected.Group("/sources")
	sourceHandler := NewSourceTransactionHandler(deps.SourceUC)
	documentHandler := NewDocumentHandler(deps.Orchestrator, deps.DocumentUC, deps.PDFUC)
	sources.Get("/", sourceHandler.List)
	sources.Get("/:id", sourceHandler.GetByID)
	sources.Post("/", RequireRole(entity.RoleOperador), sourceHandler.Create)
	sources.Post("/:id/issue", RequireRole(entity.RoleOperador), documentHandler.Issue)

	// Usuarios: administración solo admin
	users := protected.Group("/users", RequireRole())
	userHandler := NewUserHandler(deps.UserUC)
	users.Get("/", userHandler.List)
	users.Get("/:id", userHandler.GetByID)
	users.Put("/:id/role", userHandler.UpdateRole)
	users.Delete("/:id", userHandler.Deactivate)

	// Documentos emitidos: solo lectura (auditor incluido)
	documents := protected.Group("/documents")
	documents.Get("/:id", documentHandler.GetByID)
	documents.Get("/:id/status", documentHandler.GetStatus)
	documents.Get("/:id/pdf", documentHandler.DownloadPDF)
	documents.Get("/:id/xml", documentHandler.DownloadXML)
}
