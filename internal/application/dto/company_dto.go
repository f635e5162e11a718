package dto

import "time"

// RegisterIssuerRequest alta o actualización de un emisor. ID vacío genera uno nuevo.
type RegisterIssuerRequest struct {
	ID                    string `json:"id,omitempty"`
	Name                  string `json:"name"`
	TradeName             string `json:"trade_name,omitempty"`
	CNPJ                  string `json:"cnpj"`
	StateRegistration     string `json:"state_registration,omitempty"`
	MunicipalRegistration string `json:"municipal_registration,omitempty"`
	MunicipalityCode      string `json:"municipality_code,omitempty"`
	Street                string `json:"street,omitempty"`
	Number                string `json:"number,omitempty"`
	District              string `json:"district,omitempty"`
	City                  string `json:"city,omitempty"`
	State                 string `json:"state"`
	PostalCode            string `json:"postal_code,omitempty"`
	Phone                 string `json:"phone,omitempty"`
	Email                 string `json:"email,omitempty"`
	TaxRegime             string `json:"tax_regime"`
	Environment           string `json:"environment"` // sandbox | production
	GatewayToken          string `json:"gateway_token,omitempty"`
	Status                string `json:"status,omitempty"` // active (por defecto) | suspended | inactive
}

// CompanyResponse emisor sin el token del gateway.
type CompanyResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	TradeName       string    `json:"trade_name,omitempty"`
	CNPJ            string    `json:"cnpj"`
	State           string    `json:"state"`
	City            string    `json:"city,omitempty"`
	TaxRegime       string    `json:"tax_regime"`
	Environment     string    `json:"environment"`
	Status          string    `json:"status"`
	HasGatewayToken bool      `json:"has_gateway_token"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
