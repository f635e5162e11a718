package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// IssueFiscalDocumentRequest body para POST /api/fiscal-documents.
// Si Items va vacío se sintetiza una sola línea con OrderTotal.
type IssueFiscalDocumentRequest struct {
	Kind            string              `json:"kind"` // goods-invoice | consumer-invoice | service-invoice
	Reference       string              `json:"reference"`
	Recipient       FiscalPartyRequest  `json:"recipient"`
	Items           []FiscalItemRequest `json:"items,omitempty"`
	OrderTotal      decimal.Decimal     `json:"order_total"`
	TaxRegime       string              `json:"tax_regime,omitempty"` // vacío = régimen del emisor
	Freight         decimal.Decimal     `json:"freight"`
	Insurance       decimal.Decimal     `json:"insurance"`
	Discount        decimal.Decimal     `json:"discount"`
	OperationNature string              `json:"operation_nature,omitempty"`
	ServiceListItem string              `json:"service_list_item,omitempty"`
	Notes           string              `json:"notes,omitempty"`
}

// FiscalPartyRequest destinatario del documento.
type FiscalPartyRequest struct {
	Name                  string               `json:"name"`
	TaxID                 string               `json:"tax_id,omitempty"` // CPF o CNPJ
	StateRegistration     string               `json:"state_registration,omitempty"`
	MunicipalRegistration string               `json:"municipal_registration,omitempty"`
	Email                 string               `json:"email,omitempty"`
	Phone                 string               `json:"phone,omitempty"`
	Address               FiscalAddressRequest `json:"address"`
}

// FiscalAddressRequest dirección; todos los campos son opcionales.
type FiscalAddressRequest struct {
	Street           string `json:"street,omitempty"`
	Number           string `json:"number,omitempty"`
	District         string `json:"district,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	MunicipalityCode string `json:"municipality_code,omitempty"`
}

// FiscalItemRequest línea del documento.
type FiscalItemRequest struct {
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Unit        string          `json:"unit,omitempty"`
	NCM         string          `json:"ncm,omitempty"`
	CFOP        string          `json:"cfop,omitempty"`
}

// CancelFiscalDocumentRequest body para POST /api/fiscal-documents/:reference/cancel.
type CancelFiscalDocumentRequest struct {
	Justification string `json:"justification"`
}

// AmendFiscalDocumentRequest body para POST /api/fiscal-documents/:reference/amendments.
type AmendFiscalDocumentRequest struct {
	Text string `json:"text"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// FiscalDocumentResponse registro de ciclo de vida.
type FiscalDocumentResponse struct {
	Reference      string          `json:"reference"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	Environment    string          `json:"environment"`
	Number         string          `json:"number,omitempty"`
	Series         string          `json:"series,omitempty"`
	AccessKey      string          `json:"access_key,omitempty"`
	XMLURL         string          `json:"xml_url,omitempty"`
	PDFURL         string          `json:"pdf_url,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	AmendmentCount int             `json:"amendment_count"`
	Total          decimal.Decimal `json:"total"`
	AuthorizedAt   *time.Time      `json:"authorized_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// FiscalArtifacts enlaces a los artefactos autorizados.
type FiscalArtifacts struct {
	XMLURL string `json:"xml_url,omitempty"`
	PDFURL string `json:"pdf_url,omitempty"`
}

// FiscalErrorDetail error clasificado con el diagnóstico del gateway, si lo hay.
type FiscalErrorDetail struct {
	Code           string   `json:"code"` // VALIDATION | INVALID_STATE | SUBMISSION_REJECTED | TRANSIENT_GATEWAY | ...
	Message        string   `json:"message"`
	Fields         []string `json:"fields,omitempty"`
	GatewayCode    string   `json:"gateway_code,omitempty"`
	GatewayMessage string   `json:"gateway_message,omitempty"`
	Retryable      bool     `json:"retryable"`
}

// IssueResult resultado de issue: nunca se devuelve como error.
type IssueResult struct {
	Reference string                  `json:"reference"`
	Status    string                  `json:"status,omitempty"`
	Errors    []string                `json:"errors,omitempty"`
	Error     *FiscalErrorDetail      `json:"error,omitempty"`
	Document  *FiscalDocumentResponse `json:"document,omitempty"`
}

// RefreshResult resultado de refresh. Artifacts solo cuando AUTHORIZED.
type RefreshResult struct {
	Reference string                  `json:"reference"`
	Status    string                  `json:"status,omitempty"`
	Artifacts *FiscalArtifacts        `json:"artifacts,omitempty"`
	LastError string                  `json:"last_error,omitempty"`
	Error     *FiscalErrorDetail      `json:"error,omitempty"`
	Document  *FiscalDocumentResponse `json:"document,omitempty"`
}

// CancelResult resultado de cancel; Status es el estado vigente tras la operación.
type CancelResult struct {
	Reference string             `json:"reference"`
	Status    string             `json:"status,omitempty"`
	Error     *FiscalErrorDetail `json:"error,omitempty"`
}

// AmendResult resultado de amend.
type AmendResult struct {
	Reference      string             `json:"reference"`
	Status         string             `json:"status,omitempty"`
	AmendmentCount int                `json:"amendment_count"`
	Error          *FiscalErrorDetail `json:"error,omitempty"`
}

// ProtocolResponse protocolo de autorización leído del XML autorizado.
type ProtocolResponse struct {
	Reference      string `json:"reference"`
	AccessKey      string `json:"access_key"`
	ProtocolNumber string `json:"protocol_number"`
	StatusCode     string `json:"status_code"`
	Reason         string `json:"reason"`
	ReceivedAt     string `json:"received_at,omitempty"`
	Environment    string `json:"environment,omitempty"`
	IssuerTaxID    string `json:"issuer_tax_id,omitempty"`
	Total          string `json:"total,omitempty"`
	Authorized     bool   `json:"authorized"`
}
