package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/nfe-emissor/internal/domain"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo emisores en memoria.
type CompanyRepo struct {
	mu        sync.RWMutex
	companies map[string]entity.Company
}

// NewCompanyRepository construye el repositorio con los emisores dados.
func NewCompanyRepository(companies ...*entity.Company) *CompanyRepo {
	r := &CompanyRepo{companies: make(map[string]entity.Company, len(companies))}
	for _, c := range companies {
		r.Put(c)
	}
	return r
}

// Put agrega o reemplaza un emisor.
func (r *CompanyRepo) Put(c *entity.Company) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.companies[c.ID] = *c
}

func (r *CompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CompanyRepo) Save(_ context.Context, c *entity.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, other := range r.companies {
		if id != c.ID && other.CNPJ == c.CNPJ {
			return fmt.Errorf("save company: cnpj %s: %w", c.CNPJ, domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	if prev, ok := r.companies[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	r.companies[c.ID] = *c
	return nil
}
