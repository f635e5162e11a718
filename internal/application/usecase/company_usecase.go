package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

const cnpjLength = 14

// CompanyUseCase alta y consulta de emisores.
type CompanyUseCase struct {
	repo       repository.CompanyRepository
	defaultEnv string
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository) *CompanyUseCase {
	return &CompanyUseCase{repo: repo, defaultEnv: pkgfiscal.EnvironmentSandbox}
}

// SetDefaultEnvironment ambiente asignado cuando el alta no indica uno.
func (uc *CompanyUseCase) SetDefaultEnvironment(env string) {
	if env != "" {
		uc.defaultEnv = env
	}
}

// Register valida, normaliza y guarda el emisor. Un token vacío conserva el
// token ya guardado para ese ID.
func (uc *CompanyUseCase) Register(ctx context.Context, in dto.RegisterIssuerRequest) (*dto.CompanyResponse, error) {
	c, err := toCompany(in, uc.defaultEnv)
	if err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	} else if c.GatewayToken == "" {
		prev, err := uc.repo.GetByID(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("obtener empresa: %w", err)
		}
		if prev != nil {
			c.GatewayToken = prev.GatewayToken
		}
	}
	if err := uc.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return ToCompanyResponse(c), nil
}

// GetByID obtiene un emisor; ErrNotFound si no existe.
func (uc *CompanyUseCase) GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error) {
	c, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("obtener empresa: %w", err)
	}
	if c == nil {
		return nil, &domain.FiscalError{Kind: domain.ErrNotFound, Message: fmt.Sprintf("empresa %q no encontrada", id)}
	}
	return ToCompanyResponse(c), nil
}

func toCompany(in dto.RegisterIssuerRequest, defaultEnv string) (*entity.Company, error) {
	var problems []string

	name := strings.TrimSpace(in.Name)
	if name == "" {
		problems = append(problems, "razón social requerida")
	}
	cnpj := fiscal.NormalizeTaxID(in.CNPJ)
	if len(cnpj) != cnpjLength {
		problems = append(problems, "el CNPJ debe tener 14 dígitos")
	}
	state, ok := fiscal.ParseRegionCode(in.State)
	if !ok {
		problems = append(problems, fmt.Sprintf("UF inválida: %q", in.State))
	}
	regime := pkgfiscal.ParseTaxRegime(in.TaxRegime)
	if regime == pkgfiscal.RegimeUnknown {
		problems = append(problems, fmt.Sprintf("regime tributário no reconocido: %q", in.TaxRegime))
	}
	env := strings.ToLower(strings.TrimSpace(in.Environment))
	if env == "" {
		env = defaultEnv
	}
	if env != pkgfiscal.EnvironmentSandbox && env != pkgfiscal.EnvironmentProduction {
		problems = append(problems, fmt.Sprintf("ambiente inválido: %q", in.Environment))
	}
	status := strings.ToLower(strings.TrimSpace(in.Status))
	switch status {
	case "":
		status = entity.CompanyStatusActive
	case entity.CompanyStatusActive, entity.CompanyStatusSuspended, entity.CompanyStatusInactive:
	default:
		problems = append(problems, fmt.Sprintf("estado inválido: %q", in.Status))
	}
	if len(problems) > 0 {
		return nil, domain.NewValidationError("datos del emisor incompletos", problems...)
	}

	postal := ""
	if strings.TrimSpace(in.PostalCode) != "" {
		postal = fiscal.NormalizePostalCode(in.PostalCode)
	}
	return &entity.Company{
		ID:                    strings.TrimSpace(in.ID),
		Name:                  name,
		TradeName:             strings.TrimSpace(in.TradeName),
		CNPJ:                  cnpj,
		StateRegistration:     fiscal.NormalizeTaxID(in.StateRegistration),
		MunicipalRegistration: fiscal.NormalizeTaxID(in.MunicipalRegistration),
		MunicipalityCode:      fiscal.NormalizeTaxID(in.MunicipalityCode),
		Street:                strings.TrimSpace(in.Street),
		Number:                strings.TrimSpace(in.Number),
		District:              strings.TrimSpace(in.District),
		City:                  strings.TrimSpace(in.City),
		State:                 state,
		PostalCode:            postal,
		Phone:                 fiscal.NormalizePhone(in.Phone),
		Email:                 strings.TrimSpace(in.Email),
		TaxRegime:             string(regime),
		FiscalEnvironment:     env,
		GatewayToken:          strings.TrimSpace(in.GatewayToken),
		Status:                status,
	}, nil
}

// ToCompanyResponse mapea la entidad sin exponer el token.
func ToCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	if c == nil {
		return nil
	}
	return &dto.CompanyResponse{
		ID:              c.ID,
		Name:            c.Name,
		TradeName:       c.TradeName,
		CNPJ:            c.CNPJ,
		State:           c.State,
		City:            c.City,
		TaxRegime:       c.TaxRegime,
		Environment:     c.FiscalEnvironment,
		Status:          c.Status,
		HasGatewayToken: c.GatewayToken != "",
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
