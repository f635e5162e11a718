package repository

import (
	"context"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// FiscalDocumentRepository puerto del almacén de ciclo de vida. Es el único
// recurso mutable compartido; cada escritura es atómica y se indexa por
// (issuer_id, reference).
type FiscalDocumentRepository interface {
	// CreateIfAbsent inserta el registro si no existe otro con la misma
	// (issuer, reference). Si ya existe devuelve el existente y created=false.
	CreateIfAbsent(ctx context.Context, doc *entity.FiscalDocument) (stored *entity.FiscalDocument, created bool, err error)
	// Get devuelve nil, nil si no existe.
	Get(ctx context.Context, issuerID, reference string) (*entity.FiscalDocument, error)
	// Update persiste doc solo si el estado almacenado sigue siendo expectedStatus;
	// en caso contrario devuelve domain.ErrConflict.
	Update(ctx context.Context, doc *entity.FiscalDocument, expectedStatus string) error
	// IncrementAmendments suma una corrección de forma atómica si el documento
	// sigue AUTHORIZED y devuelve el nuevo total. domain.ErrConflict si no.
	IncrementAmendments(ctx context.Context, issuerID, reference string) (int, error)
	// ListByStatus lista documentos de un emisor en un estado, más antiguos primero,
	// saltando los primeros offset.
	ListByStatus(ctx context.Context, issuerID, status string, limit, offset int) ([]*entity.FiscalDocument, error)
}
