// Package memory implementa los puertos de persistencia en memoria para la
// CLI en modo local y para los tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

type docKey struct{ issuer, reference string }

// FiscalDocumentRepo almacén en memoria. Guarda y devuelve copias para que
// ningún llamador comparta el registro almacenado.
type FiscalDocumentRepo struct {
	mu   sync.Mutex
	docs map[docKey]*entity.FiscalDocument
}

// NewFiscalDocumentRepository construye un almacén vacío.
func NewFiscalDocumentRepository() *FiscalDocumentRepo {
	return &FiscalDocumentRepo{docs: make(map[docKey]*entity.FiscalDocument)}
}

func (r *FiscalDocumentRepo) CreateIfAbsent(_ context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := docKey{doc.IssuerID, doc.Reference}
	if existing, ok := r.docs[k]; ok {
		return clone(existing), false, nil
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	r.docs[k] = clone(doc)
	return clone(doc), true, nil
}

func (r *FiscalDocumentRepo) Get(_ context.Context, issuerID, reference string) (*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[docKey{issuerID, reference}]; ok {
		return clone(d), nil
	}
	return nil, nil
}

func (r *FiscalDocumentRepo) Update(_ context.Context, doc *entity.FiscalDocument, expectedStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := docKey{doc.IssuerID, doc.Reference}
	current, ok := r.docs[k]
	if !ok {
		return fmt.Errorf("update fiscal document %q: %w", doc.Reference, domain.ErrNotFound)
	}
	if current.Status != expectedStatus {
		return fmt.Errorf("update fiscal document %q: %w", doc.Reference, domain.ErrConflict)
	}
	doc.UpdatedAt = time.Now().UTC()
	updated := clone(doc)
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	updated.AmendmentCount = current.AmendmentCount
	r.docs[k] = updated
	return nil
}

func (r *FiscalDocumentRepo) IncrementAmendments(_ context.Context, issuerID, reference string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.docs[docKey{issuerID, reference}]
	if !ok {
		return 0, fmt.Errorf("increment amendments %q: %w", reference, domain.ErrNotFound)
	}
	if current.Status != entity.FiscalStatusAuthorized {
		return 0, fmt.Errorf("increment amendments %q: %w", reference, domain.ErrConflict)
	}
	current.AmendmentCount++
	current.UpdatedAt = time.Now().UTC()
	return current.AmendmentCount, nil
}

func (r *FiscalDocumentRepo) ListByStatus(_ context.Context, issuerID, status string, limit, offset int) ([]*entity.FiscalDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var list []*entity.FiscalDocument
	for k, d := range r.docs {
		if k.issuer == issuerID && d.Status == status {
			list = append(list, clone(d))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Reference < list[j].Reference
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(list) {
			return nil, nil
		}
		list = list[offset:]
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func clone(d *entity.FiscalDocument) *entity.FiscalDocument {
	c := *d
	if d.AuthorizedAt != nil {
		t := *d.AuthorizedAt
		c.AuthorizedAt = &t
	}
	if d.CancelledAt != nil {
		t := *d.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
