package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BodyKind variante de una respuesta del gateway ya interpretada.
type BodyKind int

const (
	BodyJSON     BodyKind = iota // el cuerpo completo era JSON
	BodyEmbedded                 // JSON extraído del primer {...} dentro de texto (HTML, etc.)
	BodyRaw                      // texto opaco sin JSON reconocible
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyEmbedded:
		return "embedded"
	default:
		return "raw"
	}
}

// GenericErrorMessage mensaje usado cuando el gateway no envía ninguno reconocible.
const GenericErrorMessage = "el gateway no informó el motivo del error"

// Body respuesta interpretada. Fields es nil en la variante BodyRaw.
type Body struct {
	Kind   BodyKind
	Fields map[string]any
	Raw    string
}

// Status estado del documento según el gateway, reducido a un conjunto cerrado.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusDenied     Status = "denied"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

var statusAliases = map[string]Status{
	"processing":              StatusPending,
	"processando_autorizacao": StatusPending,
	"pending":                 StatusPending,
	"authorized":              StatusAuthorized,
	"autorizado":              StatusAuthorized,
	"rejected":                StatusRejected,
	"erro_autorizacao":        StatusRejected,
	"denied":                  StatusDenied,
	"denegado":                StatusDenied,
	"cancelled":               StatusCancelled,
	"cancelado":               StatusCancelled,
}

// ParseStatus traduce el texto de estado del gateway. Desconocido → StatusUnknown.
func ParseStatus(s string) Status {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusUnknown
}

// Message código y texto de diagnóstico del gateway.
type Message struct {
	Code string
	Text string
}

// Outcome datos de estado contenidos en una respuesta (submit o query).
type Outcome struct {
	Status    Status
	RawStatus string
	Number    string
	Series    string
	AccessKey string
	XMLPath   string
	PDFPath   string
	Message   Message
}

// Interpret interpreta el cuerpo de forma defensiva y nunca falla:
// JSON directo, luego el primer objeto {...} embebido, luego texto opaco.
func Interpret(raw []byte) Body {
	trimmed := bytes.TrimSpace(raw)
	if m, ok := decodeObject(trimmed); ok {
		return Body{Kind: BodyJSON, Fields: m, Raw: string(raw)}
	}
	if frag := firstObject(trimmed); frag != nil {
		if m, ok := decodeObject(frag); ok {
			return Body{Kind: BodyEmbedded, Fields: m, Raw: string(raw)}
		}
	}
	return Body{Kind: BodyRaw, Raw: string(raw)}
}

// String devuelve el valor de texto de la primera clave presente.
func (b Body) String(keys ...string) string {
	return firstString(b.Fields, keys...)
}

// Outcome extrae el estado y los identificadores. ok=false si el cuerpo no trae estado.
func (b Body) Outcome() (*Outcome, bool) {
	if b.Fields == nil {
		return nil, false
	}
	raw := firstString(b.Fields, "status")
	if raw == "" {
		return nil, false
	}
	o := &Outcome{
		Status:    ParseStatus(raw),
		RawStatus: raw,
		Number:    firstString(b.Fields, "documentNumber", "numero"),
		Series:    firstString(b.Fields, "series", "serie"),
		AccessKey: firstString(b.Fields, "accessKey", "chave_nfe", "codigo_verificacao"),
		XMLPath:   firstString(b.Fields, "xmlPath", "caminho_xml_nota_fiscal"),
		PDFPath:   firstString(b.Fields, "pdfPath", "caminho_danfe", "caminho_pdf_nota_fiscal", "url_danfse"),
	}
	if sefaz := firstString(b.Fields, "mensagem_sefaz"); sefaz != "" {
		o.Message = Message{Code: firstString(b.Fields, "status_sefaz"), Text: sefaz}
	} else if o.Status == StatusRejected || o.Status == StatusDenied {
		o.Message = b.ErrorMessage()
	}
	return o, true
}

// ErrorMessage extrae el mensaje de error en orden: par {code, message},
// message simple, message con JSON doblemente codificado, error, lista de
// errores y, por último, un mensaje genérico. En la variante raw se usa el texto.
func (b Body) ErrorMessage() Message {
	if b.Fields == nil {
		if txt := strings.TrimSpace(b.Raw); txt != "" {
			return Message{Text: txt}
		}
		return Message{Text: GenericErrorMessage}
	}
	if m, ok := extractMessage(b.Fields, 0); ok {
		return m
	}
	return Message{Code: firstString(b.Fields, "codigo", "code"), Text: GenericErrorMessage}
}

const maxMessageDepth = 3

func extractMessage(fields map[string]any, depth int) (Message, bool) {
	code := firstString(fields, "codigo", "code")
	msg := firstString(fields, "mensagem", "message")

	if msg != "" {
		inner, encoded := decodeObject([]byte(strings.TrimSpace(msg)))
		if !encoded {
			return Message{Code: code, Text: msg}, true
		}
		if depth < maxMessageDepth {
			if m, ok := extractMessage(inner, depth+1); ok {
				if m.Code == "" {
					m.Code = code
				}
				return m, true
			}
		}
	}

	switch e := fields["error"].(type) {
	case string:
		if e = strings.TrimSpace(e); e != "" {
			if inner, ok := decodeObject([]byte(e)); ok && depth < maxMessageDepth {
				if m, ok := extractMessage(inner, depth+1); ok {
					return m, true
				}
			}
			return Message{Code: code, Text: e}, true
		}
	case map[string]any:
		if depth < maxMessageDepth {
			if m, ok := extractMessage(e, depth+1); ok {
				return m, true
			}
		}
	}

	if list, ok := fields["erros"].([]any); ok && len(list) > 0 {
		texts := make([]string, 0, len(list))
		first := ""
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if m, ok := extractMessage(obj, maxMessageDepth); ok {
				if first == "" {
					first = m.Code
				}
				texts = append(texts, m.Text)
			}
		}
		if len(texts) > 0 {
			if code == "" {
				code = first
			}
			return Message{Code: code, Text: strings.Join(texts, "; ")}, true
		}
	}
	return Message{}, false
}

// decodeObject decodifica un objeto JSON conservando los números como json.Number.
func decodeObject(b []byte) (map[string]any, bool) {
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return m, true
}

// maxEmbeddedScan bytes examinados en busca de un objeto embebido.
const maxEmbeddedScan = 256 << 10

// firstObject devuelve el fragmento {...} balanceado que empieza más temprano,
// respetando cadenas JSON. Una sola pasada con una pila de aperturas.
func firstObject(b []byte) []byte {
	from := bytes.IndexByte(b, '{')
	if from < 0 {
		return nil
	}
	if len(b)-from > maxEmbeddedScan {
		b = b[:from+maxEmbeddedScan]
	}
	var (
		opens            []int
		bestStart        = -1
		bestEnd          int
		inString, escape bool
	)
	for i := from; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(opens) > 0
		case '{':
			opens = append(opens, i)
		case '}':
			if len(opens) == 0 {
				continue
			}
			start := opens[len(opens)-1]
			opens = opens[:len(opens)-1]
			if len(opens) == 0 {
				return b[start : i+1]
			}
			if bestStart < 0 || start < bestStart {
				bestStart, bestEnd = start, i+1
			}
		}
	}
	if bestStart < 0 {
		return nil
	}
	return b[bestStart:bestEnd]
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		case bool:
			if v {
				return "true"
			}
			return "false"
		}
	}
	return ""
}
