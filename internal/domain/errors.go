package domain

import (
	"errors"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Taxonomía de errores del motor de emisión fiscal.
var (
	// ErrValidation entrada faltante o mal formada; se detecta antes de cualquier llamada de red.
	ErrValidation = errors.New("validación fallida")
	// ErrSubmissionRejected el gateway rechazó el documento; corregir y reemitir con otra referencia.
	ErrSubmissionRejected = errors.New("envío rechazado por el gateway")
	// ErrTransientGateway red, timeout o 5xx; se puede reintentar con la misma referencia.
	ErrTransientGateway = errors.New("error transitorio del gateway")
	// ErrMalformedResponse respuesta ilegible del gateway; también es transitoria.
	ErrMalformedResponse = errors.New("respuesta malformada del gateway")
	// ErrInvalidState operación no permitida desde el estado actual del documento.
	ErrInvalidState = errors.New("operación no permitida en el estado actual")
)

// FiscalError error clasificado con el detalle que necesita la capa de presentación.
type FiscalError struct {
	Kind           error    // uno de los sentinels Err*
	Message        string   // mensaje legible
	Fields         []string // problemas de validación (todos, no solo el primero)
	GatewayCode    string   // código devuelto por el gateway, si existe
	GatewayMessage string   // mensaje devuelto por el gateway, si existe
	HTTPStatus     int      // status HTTP de la respuesta del gateway (0 si no hubo respuesta)
	Err            error    // causa original
}

func (e *FiscalError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, "; "))
		b.WriteString("]")
	}
	if e.GatewayCode != "" || e.GatewayMessage != "" {
		b.WriteString(" (gateway: ")
		if e.GatewayCode != "" {
			b.WriteString(e.GatewayCode)
			b.WriteString(" ")
		}
		b.WriteString(e.GatewayMessage)
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap permite errors.Is contra el sentinel y la causa. Una respuesta malformada
// también se reporta como transitoria.
func (e *FiscalError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrMalformedResponse {
		errs = append(errs, ErrTransientGateway)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewValidationError construye un ErrValidation con todos los problemas encontrados.
func NewValidationError(msg string, fields ...string) *FiscalError {
	return &FiscalError{Kind: ErrValidation, Message: msg, Fields: fields}
}

// NewStateError construye un ErrInvalidState.
func NewStateError(msg string) *FiscalError {
	return &FiscalError{Kind: ErrInvalidState, Message: msg}
}

// AsFiscalError extrae el *FiscalError de la cadena, si existe.
func AsFiscalError(err error) (*FiscalError, bool) {
	var fe *FiscalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ErrorCode código estable para respuestas HTTP/CLI.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return "VALIDATION"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrSubmissionRejected):
		return "SUBMISSION_REJECTED"
	case errors.Is(err, ErrMalformedResponse):
		return "MALFORMED_RESPONSE"
	case errors.Is(err, ErrTransientGateway):
		return "TRANSIENT_GATEWAY"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
