package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados del ciclo de vida de un documento fiscal.
const (
	FiscalStatusPending    = "SUBMITTED_PENDING" // Aceptado por el gateway, autorización pendiente
	FiscalStatusAuthorized = "AUTHORIZED"        // Autorizado por la autoridad fiscal
	FiscalStatusRejected   = "REJECTED"          // Rechazado (error de autorización)
	FiscalStatusDenied     = "DENIED"            // Denegado (uso denegado)
	FiscalStatusCancelled  = "CANCELLED"         // Cancelado después de autorizado
)

// fiscalTransitions transiciones válidas; un estado terminal no tiene salidas.
var fiscalTransitions = map[string][]string{
	FiscalStatusPending:    {FiscalStatusAuthorized, FiscalStatusRejected, FiscalStatusDenied},
	FiscalStatusAuthorized: {FiscalStatusCancelled},
}

// FiscalDocument registro persistente de un documento fiscal, uno por (emisor, referencia).
type FiscalDocument struct {
	ID             string
	IssuerID       string // empresa emisora (tenant)
	Reference      string // clave de idempotencia; inmutable
	Kind           string // goods-invoice | consumer-invoice | service-invoice
	Status         string
	Environment    string // sandbox | production
	AssignedNumber string // solo cuando AUTHORIZED
	Series         string // solo cuando AUTHORIZED
	AccessKey      string // chave de acesso; solo cuando AUTHORIZED
	XMLURL         string
	PDFURL         string
	LastError      string // se limpia al pasar a AUTHORIZED
	AmendmentCount int
	PayloadHash    string // SHA-256 del documento enviado
	TotalAmount    decimal.Decimal
	AuthorizedAt   *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CanTransitionTo indica si el paso al estado next respeta la máquina de estados.
// Permanecer en el mismo estado siempre es válido.
func (d *FiscalDocument) CanTransitionTo(next string) bool {
	if d.Status == next {
		return true
	}
	for _, s := range fiscalTransitions[d.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal indica si el estado ya no cambia por consulta al gateway.
func (d *FiscalDocument) IsTerminal() bool {
	return d.Status != FiscalStatusPending
}

// IsFinal indica si el estado no admite ninguna transición más.
func (d *FiscalDocument) IsFinal() bool {
	return len(fiscalTransitions[d.Status]) == 0
}
