package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
)

// issuerChecker contrato mínimo para verificar que la empresa puede emitir.
// Lo implementa *billing.FiscalUseCase.
type issuerChecker interface {
	CanIssue(ctx context.Context, companyID string) (bool, string, error)
}

// RequireIssuer verifica que la empresa del token esté activa y tenga credencial
// del gateway. Debe usarse DESPUÉS de AuthMiddleware (necesita LocalCompanyID).
//
//   - 403 Forbidden → empresa inactiva o sin token del gateway.
//   - 503 Service Unavailable → fallo al consultar el almacén.
func RequireIssuer(checker issuerChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID := GetCompanyID(c)
		if companyID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "company_id no encontrado en el token",
			})
		}

		ok, reason, err := checker.CanIssue(c.Context(), companyID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "ISSUER_CHECK_FAILED",
				Message: "no se pudo verificar el emisor, intente más tarde",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "ISSUER_DISABLED",
				Message: reason,
			})
		}
		return c.Next()
	}
}
