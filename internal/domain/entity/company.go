package entity

import "time"

// Company representa una organización/tenant del sistema y, a la vez, el emisor
// de sus documentos fiscales. La identidad fiscal es inmutable por tenant.
type Company struct {
	ID                    string
	Name                  string // Razão social
	TradeName             string // Nome fantasia
	CNPJ                  string
	StateRegistration     string // Inscrição estadual
	MunicipalRegistration string // Inscrição municipal (NFS-e)
	MunicipalityCode      string // Código IBGE del municipio (NFS-e)
	Street                string
	Number                string
	District              string
	City                  string
	State                 string
	PostalCode            string
	Phone                 string
	Email                 string
	TaxRegime             string // simples_nacional, mei, normal...
	FiscalEnvironment     string // sandbox | production
	GatewayToken          string // credencial del gateway (usuario de basic auth)
	Status                string // active, suspended, inactive
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Estados de la empresa; solo una empresa activa emite.
const (
	CompanyStatusActive    = "active"
	CompanyStatusSuspended = "suspended"
	CompanyStatusInactive  = "inactive"
)
