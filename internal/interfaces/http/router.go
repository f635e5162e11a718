package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/billing"
	"github.com/jhoicas/nfe-emissor/internal/application/usecase"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	FiscalUC  *billing.FiscalUseCase
	CompanyUC *usecase.CompanyUseCase
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	anyRole := RequireRole(RoleAdmin, RoleIssuer, RoleViewer)
	issuers := RequireRole(RoleAdmin, RoleIssuer)
	adminOnly := RequireRole(RoleAdmin)
	issuerReady := RequireIssuer(deps.FiscalUC)

	if deps.CompanyUC != nil {
		company := NewCompanyHandler(deps.CompanyUC)
		protected.Get("/issuer", anyRole, company.Get)
		protected.Put("/issuer", adminOnly, company.Update)
	}

	docs := protected.Group("/fiscal-documents")
	h := NewFiscalHandler(deps.FiscalUC)

	// rutas fijas antes de /:reference
	docs.Get("/pending", anyRole, h.ListPending)
	docs.Post("/pending/refresh", issuers, issuerReady, h.RefreshPending)
	docs.Post("/preview", issuers, h.Preview)

	docs.Post("/", issuers, issuerReady, h.Issue)
	docs.Get("/:reference", anyRole, h.Get)
	docs.Get("/:reference/protocol", anyRole, h.Protocol)
	docs.Post("/:reference/refresh", issuers, issuerReady, h.Refresh)
	docs.Post("/:reference/amendments", issuers, issuerReady, h.Amend)
	docs.Post("/:reference/cancel", adminOnly, issuerReady, h.Cancel)
}
