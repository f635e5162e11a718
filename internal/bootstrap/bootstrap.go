// Package bootstrap arma los casos de uso a partir de la configuración. Lo
// comparten el servidor HTTP y la CLI.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jhoicas/nfe-emissor/internal/application/billing"
	"github.com/jhoicas/nfe-emissor/internal/application/usecase"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/gateway"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/nfe-emissor/internal/infrastructure/pdf"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/postgres"
	"github.com/jhoicas/nfe-emissor/pkg/config"
	"github.com/jhoicas/nfe-emissor/pkg/logger"
)

// Almacenes soportados.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Services casos de uso listos para usar.
type Services struct {
	Fiscal    *billing.FiscalUseCase
	Companies *usecase.CompanyUseCase
	Orch      *billing.FiscalOrchestrator
	close     func()
}

// Close libera el pool de conexiones, si lo hay.
func (s *Services) Close() {
	if s.close != nil {
		s.close()
	}
}

// New arma los servicios sobre el almacén indicado. Con postgres aplica el
// esquema antes de devolver.
func New(ctx context.Context, cfg *config.Config, store string, log *logger.Logger) (*Services, error) {
	var (
		companies repository.CompanyRepository
		docs      repository.FiscalDocumentRepository
		closeFn   func()
	)
	switch store {
	case StoreMemory:
		companies = memory.NewCompanyRepository()
		docs = memory.NewFiscalDocumentRepository()
	case StorePostgres, "":
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		companies = postgres.NewCompanyRepository(pool)
		docs = postgres.NewFiscalDocumentRepository(pool)
		closeFn = pool.Close
	default:
		return nil, fmt.Errorf("almacén desconocido: %q (postgres | memory)", store)
	}

	client := gateway.NewClient(GatewayConfig(cfg.Fiscal), &http.Client{}, log.Component("gateway"))
	orch := billing.NewFiscalOrchestrator(
		docs,
		client,
		fiscal.NewBuilder(BuilderDefaults(cfg.Fiscal)),
		infrapdf.NewMarotoPreviewRenderer(),
		billing.OrchestratorConfig{CancelWindow: cfg.Fiscal.CancelWindow()},
		log.Component("orchestrator"),
	)
	companyUC := usecase.NewCompanyUseCase(companies)
	companyUC.SetDefaultEnvironment(cfg.Fiscal.Environment)

	return &Services{
		Fiscal:    billing.NewFiscalUseCase(companies, orch),
		Companies: companyUC,
		Orch:      orch,
		close:     closeFn,
	}, nil
}

// GatewayConfig endpoints y timeout del gateway.
func GatewayConfig(c config.FiscalConfig) gateway.Config {
	return gateway.Config{
		SandboxURL:    c.SandboxURL,
		ProductionURL: c.ProductionURL,
		APIVersion:    c.APIVersion,
		Timeout:       c.Timeout(),
	}
}

// BuilderDefaults valores por defecto del Builder; los vacíos toman StandardDefaults.
func BuilderDefaults(c config.FiscalConfig) fiscal.Defaults {
	return fiscal.Defaults{
		Region:               c.DefaultRegion,
		SandboxIndividualID:  c.SandboxIndividualID,
		NCM:                  c.DefaultNCM,
		CFOP:                 c.DefaultCFOP,
		InterstateCFOP:       c.InterstateCFOP,
		Unit:                 c.DefaultUnit,
		ConsumerLabel:        c.ConsumerLabel,
		SandboxConsumerLabel: c.SandboxConsumerLabel,
		ServiceListItem:      c.ServiceListItem,
	}
}
