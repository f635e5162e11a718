package repository

import (
	"context"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
)

// CompanyRepository define el puerto de persistencia de emisores (DIP).
// La implementación vive en infrastructure.
type CompanyRepository interface {
	// GetByID devuelve nil, nil si la empresa no existe.
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	// Save crea o reemplaza el emisor por ID. Un CNPJ ya usado por otro ID
	// devuelve domain.ErrConflict.
	Save(ctx context.Context, c *entity.Company) error
}
