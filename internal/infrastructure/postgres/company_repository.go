package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfe-emissor/internal/domain"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
)

// Asegura que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo emisores (tenants) sobre PostgreSQL.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador de persistencia para empresas.
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID obtiene un emisor por ID. nil, nil si no existe.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, name, COALESCE(trade_name, ''), cnpj,
		       COALESCE(state_registration, ''), COALESCE(municipal_registration, ''), COALESCE(municipality_code, ''),
		       COALESCE(street, ''), COALESCE(number, ''), COALESCE(district, ''), COALESCE(city, ''),
		       COALESCE(state, ''), COALESCE(postal_code, ''), COALESCE(phone, ''), COALESCE(email, ''),
		       tax_regime, fiscal_environment, COALESCE(gateway_token, ''), status,
		       created_at, updated_at
		FROM companies WHERE id = $1`
	var c entity.Company
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.TradeName, &c.CNPJ,
		&c.StateRegistration, &c.MunicipalRegistration, &c.MunicipalityCode,
		&c.Street, &c.Number, &c.District, &c.City,
		&c.State, &c.PostalCode, &c.Phone, &c.Email,
		&c.TaxRegime, &c.FiscalEnvironment, &c.GatewayToken, &c.Status,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// Save upsert por id; created_at se conserva en la actualización.
func (r *CompanyRepo) Save(ctx context.Context, c *entity.Company) error {
	query := `
		INSERT INTO companies (
			id, name, trade_name, cnpj, state_registration, municipal_registration, municipality_code,
			street, number, district, city, state, postal_code, phone, email,
			tax_regime, fiscal_environment, gateway_token, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, trade_name = EXCLUDED.trade_name, cnpj = EXCLUDED.cnpj,
			state_registration = EXCLUDED.state_registration,
			municipal_registration = EXCLUDED.municipal_registration,
			municipality_code = EXCLUDED.municipality_code,
			street = EXCLUDED.street, number = EXCLUDED.number, district = EXCLUDED.district,
			city = EXCLUDED.city, state = EXCLUDED.state, postal_code = EXCLUDED.postal_code,
			phone = EXCLUDED.phone, email = EXCLUDED.email,
			tax_regime = EXCLUDED.tax_regime, fiscal_environment = EXCLUDED.fiscal_environment,
			gateway_token = EXCLUDED.gateway_token, status = EXCLUDED.status,
			updated_at = now()
		RETURNING created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		c.ID, c.Name, nullIfEmpty(c.TradeName), c.CNPJ,
		nullIfEmpty(c.StateRegistration), nullIfEmpty(c.MunicipalRegistration), nullIfEmpty(c.MunicipalityCode),
		nullIfEmpty(c.Street), nullIfEmpty(c.Number), nullIfEmpty(c.District), nullIfEmpty(c.City),
		nullIfEmpty(c.State), nullIfEmpty(c.PostalCode), nullIfEmpty(c.Phone), nullIfEmpty(c.Email),
		c.TaxRegime, c.FiscalEnvironment, nullIfEmpty(c.GatewayToken), c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save company: cnpj %s: %w", c.CNPJ, domain.ErrConflict)
		}
		return fmt.Errorf("save company: %w", err)
	}
	return nil
}
