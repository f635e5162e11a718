package billing

import (
	"context"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/gateway"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// FiscalGateway puerto de salida hacia el gateway de emisión. La implementación
// concreta es gateway.Client; para tests se inyecta un fake.
// Todas las operaciones devuelven errores ya clasificados (*domain.FiscalError).
type FiscalGateway interface {
	Submit(ctx context.Context, cred gateway.Credentials, kind pkgfiscal.DocumentKind, reference string, payload any) (*gateway.Reply, error)
	Query(ctx context.Context, cred gateway.Credentials, kind pkgfiscal.DocumentKind, reference string) (*gateway.Reply, error)
	Cancel(ctx context.Context, cred gateway.Credentials, kind pkgfiscal.DocumentKind, reference, justification string) (*gateway.Reply, error)
	Amend(ctx context.Context, cred gateway.Credentials, kind pkgfiscal.DocumentKind, reference, text string) (*gateway.Reply, error)
	Download(ctx context.Context, cred gateway.Credentials, link string) ([]byte, error)
	ResolveLink(environment, path string) string
}

// PreviewRenderer genera el PDF borrador (sin valor fiscal) de un documento construido.
type PreviewRenderer interface {
	RenderPreview(doc *fiscal.Document, issuer *entity.Company) ([]byte, error)
}

var _ FiscalGateway = (*gateway.Client)(nil)
