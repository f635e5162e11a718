package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// FiscalDocumentRepo almacén de ciclo de vida sobre PostgreSQL (usable con pool o tx).
// La unicidad de (issuer_id, reference) la garantiza el índice único de la tabla.
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

const fiscalDocumentColumns = `
	id, issuer_id, reference, kind, status, environment,
	assigned_number, series, access_key, xml_url, pdf_url, last_error,
	amendment_count, payload_hash, total_amount,
	authorized_at, cancelled_at, created_at, updated_at`

// CreateIfAbsent inserta con ON CONFLICT DO NOTHING; si otra escritura ganó la
// carrera se devuelve la fila existente con created=false.
func (r *FiscalDocumentRepo) CreateIfAbsent(ctx context.Context, doc *entity.FiscalDocument) (*entity.FiscalDocument, bool, error) {
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

	query := `
		INSERT INTO fiscal_documents (` + fiscalDocumentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (issuer_id, reference) DO NOTHING
		RETURNING ` + fiscalDocumentColumns

	row := r.q.QueryRow(ctx, query,
		doc.ID, doc.IssuerID, doc.Reference, doc.Kind, doc.Status, doc.Environment,
		nullIfEmpty(doc.AssignedNumber), nullIfEmpty(doc.Series), nullIfEmpty(doc.AccessKey),
		nullIfEmpty(doc.XMLURL), nullIfEmpty(doc.PDFURL), nullIfEmpty(doc.LastError),
		doc.AmendmentCount, doc.PayloadHash, doc.TotalAmount,
		doc.AuthorizedAt, doc.CancelledAt, doc.CreatedAt, doc.UpdatedAt,
	)
	stored, err := scanFiscalDocument(row)
	if err == nil {
		return stored, true, nil
	}
	if !isNoRows(err) {
		if isUniqueViolation(err) {
			// access_key duplicada: el gateway asignó la misma clave a otra referencia
			return nil, false, fmt.Errorf("insert fiscal document: %w: %v", domain.ErrConflict, err)
		}
		return nil, false, fmt.Errorf("insert fiscal document: %w", err)
	}

	existing, err := r.Get(ctx, doc.IssuerID, doc.Reference)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("insert fiscal document: conflicto sin fila existente para %q", doc.Reference)
	}
	return existing, false, nil
}

// Get devuelve nil, nil si no existe.
func (r *FiscalDocumentRepo) Get(ctx context.Context, issuerID, reference string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + fiscalDocumentColumns + ` FROM fiscal_documents WHERE issuer_id = $1 AND reference = $2`
	d, err := scanFiscalDocument(r.q.QueryRow(ctx, query, issuerID, reference))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return d, nil
}

// Update escribe solo si el estado almacenado sigue siendo expectedStatus
// (compare-and-swap en una única sentencia). amendment_count solo cambia vía
// IncrementAmendments.
func (r *FiscalDocumentRepo) Update(ctx context.Context, doc *entity.FiscalDocument, expectedStatus string) error {
	doc.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE fiscal_documents
		SET status          = $3,
		    assigned_number = $4,
		    series          = $5,
		    access_key      = $6,
		    xml_url         = $7,
		    pdf_url         = $8,
		    last_error      = $9,
		    authorized_at   = $10,
		    cancelled_at    = $11,
		    updated_at      = $12
		WHERE issuer_id = $1 AND reference = $2 AND status = $13`
	tag, err := r.q.Exec(ctx, query,
		doc.IssuerID, doc.Reference, doc.Status,
		nullIfEmpty(doc.AssignedNumber), nullIfEmpty(doc.Series), nullIfEmpty(doc.AccessKey),
		nullIfEmpty(doc.XMLURL), nullIfEmpty(doc.PDFURL), nullIfEmpty(doc.LastError),
		doc.AuthorizedAt, doc.CancelledAt, doc.UpdatedAt,
		expectedStatus,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update fiscal document: %w: %v", domain.ErrConflict, err)
		}
		return fmt.Errorf("update fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update fiscal document %q: %w", doc.Reference, domain.ErrConflict)
	}
	return nil
}

// IncrementAmendments suma una corrección en una única sentencia; el CHECK de la
// tabla impide superar el máximo.
func (r *FiscalDocumentRepo) IncrementAmendments(ctx context.Context, issuerID, reference string) (int, error) {
	query := `
		UPDATE fiscal_documents
		SET amendment_count = amendment_count + 1, updated_at = now()
		WHERE issuer_id = $1 AND reference = $2 AND status = $3
		RETURNING amendment_count`
	var count int
	err := r.q.QueryRow(ctx, query, issuerID, reference, entity.FiscalStatusAuthorized).Scan(&count)
	if err != nil {
		if isNoRows(err) {
			return 0, fmt.Errorf("increment amendments %q: %w", reference, domain.ErrConflict)
		}
		return 0, fmt.Errorf("increment amendments: %w", err)
	}
	return count, nil
}

// ListByStatus lista documentos de un emisor en un estado, más antiguos primero.
func (r *FiscalDocumentRepo) ListByStatus(ctx context.Context, issuerID, status string, limit, offset int) ([]*entity.FiscalDocument, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + fiscalDocumentColumns + `
		FROM fiscal_documents
		WHERE issuer_id = $1 AND status = $2
		ORDER BY created_at ASC, reference ASC
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, issuerID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list fiscal documents: %w", err)
	}
	defer rows.Close()

	var list []*entity.FiscalDocument
	for rows.Next() {
		d, err := scanFiscalDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal document: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

func scanFiscalDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var (
		d                                       entity.FiscalDocument
		number, series, key, xmlURL, pdfURL, le *string
	)
	err := row.Scan(
		&d.ID, &d.IssuerID, &d.Reference, &d.Kind, &d.Status, &d.Environment,
		&number, &series, &key, &xmlURL, &pdfURL, &le,
		&d.AmendmentCount, &d.PayloadHash, &d.TotalAmount,
		&d.AuthorizedAt, &d.CancelledAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.AssignedNumber = stringOrEmpty(number)
	d.Series = stringOrEmpty(series)
	d.AccessKey = stringOrEmpty(key)
	d.XMLURL = stringOrEmpty(xmlURL)
	d.PDFURL = stringOrEmpty(pdfURL)
	d.LastError = stringOrEmpty(le)
	return &d, nil
}
