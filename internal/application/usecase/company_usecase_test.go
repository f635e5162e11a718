package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/application/usecase"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/memory"
)

func validIssuer() dto.RegisterIssuerRequest {
	return dto.RegisterIssuerRequest{
		Name:         "  Papelaria Central LTDA ",
		CNPJ:         "11.222.333/0001-81",
		State:        "São Paulo",
		PostalCode:   "1305-000",
		Phone:        "+55 (11) 98765-4321",
		TaxRegime:    "Simples Nacional",
		GatewayToken: "token-123",
	}
}

func TestRegister_NormalizaYGuarda(t *testing.T) {
	repo := memory.NewCompanyRepository()
	uc := usecase.NewCompanyUseCase(repo)

	out, err := uc.Register(context.Background(), validIssuer())
	require.NoError(t, err)

	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "Papelaria Central LTDA", out.Name)
	assert.Equal(t, "11222333000181", out.CNPJ)
	assert.Equal(t, "SP", out.State)
	assert.Equal(t, "simplified", out.TaxRegime)
	assert.Equal(t, "sandbox", out.Environment)
	assert.Equal(t, "active", out.Status)
	assert.True(t, out.HasGatewayToken)

	stored, err := repo.GetByID(context.Background(), out.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "01305000", stored.PostalCode)
	assert.Equal(t, "11987654321", stored.Phone)
}

func TestRegister_ErroresDeValidacion(t *testing.T) {
	uc := usecase.NewCompanyUseCase(memory.NewCompanyRepository())
	in := dto.RegisterIssuerRequest{CNPJ: "123", State: "XX", TaxRegime: "lucro_imaginario", Environment: "staging"}

	_, err := uc.Register(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	fe, ok := domain.AsFiscalError(err)
	require.True(t, ok)
	assert.Len(t, fe.Fields, 5)
}

func TestRegister_ActualizarConservaToken(t *testing.T) {
	repo := memory.NewCompanyRepository()
	uc := usecase.NewCompanyUseCase(repo)
	ctx := context.Background()

	first, err := uc.Register(ctx, validIssuer())
	require.NoError(t, err)

	in := validIssuer()
	in.ID = first.ID
	in.GatewayToken = ""
	in.Status = "suspended"
	second, err := uc.Register(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "suspended", second.Status)
	assert.True(t, second.HasGatewayToken)
}

func TestRegister_CNPJDuplicadoEsConflicto(t *testing.T) {
	uc := usecase.NewCompanyUseCase(memory.NewCompanyRepository())
	ctx := context.Background()

	_, err := uc.Register(ctx, validIssuer())
	require.NoError(t, err)
	_, err = uc.Register(ctx, validIssuer())
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestGetByID_Inexistente(t *testing.T) {
	uc := usecase.NewCompanyUseCase(memory.NewCompanyRepository())
	_, err := uc.GetByID(context.Background(), "nada")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
