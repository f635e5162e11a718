package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/memory"
)

func newDoc(ref string) *entity.FiscalDocument {
	return &entity.FiscalDocument{
		IssuerID:  "issuer-1",
		Reference: ref,
		Kind:      "goods-invoice",
		Status:    entity.FiscalStatusPending,
	}
}

// Escrituras concurrentes con la misma referencia: exactamente una crea el registro.
func TestCreateIfAbsent_ConcurrenteMismaReferencia(t *testing.T) {
	repo := memory.NewFiscalDocumentRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	ids := map[string]bool{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, ok, err := repo.CreateIfAbsent(ctx, newDoc("ref-1"))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[stored.ID] = true
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1, "todos ven el mismo registro")
}

func TestGet_DevuelveCopia(t *testing.T) {
	repo := memory.NewFiscalDocumentRepository()
	ctx := context.Background()
	_, _, err := repo.CreateIfAbsent(ctx, newDoc("ref-1"))
	require.NoError(t, err)

	d, err := repo.Get(ctx, "issuer-1", "ref-1")
	require.NoError(t, err)
	d.Status = entity.FiscalStatusAuthorized

	again, err := repo.Get(ctx, "issuer-1", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, entity.FiscalStatusPending, again.Status)

	missing, err := repo.Get(ctx, "issuer-2", "ref-1")
	require.NoError(t, err)
	assert.Nil(t, missing, "la referencia es única por emisor")
}

func TestUpdate_CompareAndSwap(t *testing.T) {
	repo := memory.NewFiscalDocumentRepository()
	ctx := context.Background()
	stored, _, err := repo.CreateIfAbsent(ctx, newDoc("ref-1"))
	require.NoError(t, err)

	stored.Status = entity.FiscalStatusAuthorized
	require.NoError(t, repo.Update(ctx, stored, entity.FiscalStatusPending))

	stored.Status = entity.FiscalStatusRejected
	err = repo.Update(ctx, stored, entity.FiscalStatusPending)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = repo.Update(ctx, newDoc("otra"), entity.FiscalStatusPending)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListByStatus(t *testing.T) {
	repo := memory.NewFiscalDocumentRepository()
	ctx := context.Background()
	for _, ref := range []string{"a", "b", "c"} {
		_, _, err := repo.CreateIfAbsent(ctx, newDoc(ref))
		require.NoError(t, err)
	}
	b, _ := repo.Get(ctx, "issuer-1", "b")
	b.Status = entity.FiscalStatusAuthorized
	require.NoError(t, repo.Update(ctx, b, entity.FiscalStatusPending))

	pending, err := repo.ListByStatus(ctx, "issuer-1", entity.FiscalStatusPending, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	limited, err := repo.ListByStatus(ctx, "issuer-1", entity.FiscalStatusPending, 1, 0)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a", limited[0].Reference)

	second, err := repo.ListByStatus(ctx, "issuer-1", entity.FiscalStatusPending, 1, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].Reference)

	past, err := repo.ListByStatus(ctx, "issuer-1", entity.FiscalStatusPending, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestIncrementAmendments(t *testing.T) {
	repo := memory.NewFiscalDocumentRepository()
	ctx := context.Background()
	stored, _, err := repo.CreateIfAbsent(ctx, newDoc("ref-1"))
	require.NoError(t, err)

	_, err = repo.IncrementAmendments(ctx, "issuer-1", "ref-1")
	assert.ErrorIs(t, err, domain.ErrConflict, "solo documentos autorizados")

	stored.Status = entity.FiscalStatusAuthorized
	require.NoError(t, repo.Update(ctx, stored, entity.FiscalStatusPending))

	n, err := repo.IncrementAmendments(ctx, "issuer-1", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// un Update con una copia vieja no retrocede el contador
	stored.Status = entity.FiscalStatusCancelled
	require.NoError(t, repo.Update(ctx, stored, entity.FiscalStatusAuthorized))
	got, _ := repo.Get(ctx, "issuer-1", "ref-1")
	assert.Equal(t, 1, got.AmendmentCount)
}
