// Package fiscal contiene las reglas puras del motor de emisión: normalización
// de campos capturados por el usuario y construcción del documento que espera
// el gateway. Ninguna función de este paquete hace I/O.
package fiscal

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// NormalizeTaxID deja solo los dígitos de un CPF/CNPJ. No valida longitud.
func NormalizeTaxID(raw string) string {
	return digitsOnly(raw)
}

// NormalizePhone devuelve hasta 11 dígitos. Quita el prefijo de país "55"
// cuando el resto excedería 11 dígitos.
func NormalizePhone(raw string) string {
	d := digitsOnly(raw)
	if len(d) > pkgfiscal.MaxPhoneLength && strings.HasPrefix(d, pkgfiscal.PhoneCountryCode) {
		d = d[len(pkgfiscal.PhoneCountryCode):]
	}
	if len(d) > pkgfiscal.MaxPhoneLength {
		d = d[:pkgfiscal.MaxPhoneLength]
	}
	return d
}

// NormalizePostalCode devuelve exactamente 8 dígitos rellenando con ceros a la
// izquierda. Entrada vacía produce "00000000": el gateway exige el campo.
func NormalizePostalCode(raw string) string {
	d := digitsOnly(raw)
	if d == "" {
		return pkgfiscal.EmptyPostalCode
	}
	if len(d) > pkgfiscal.PostalCodeLength {
		return d[:pkgfiscal.PostalCodeLength]
	}
	return strings.Repeat("0", pkgfiscal.PostalCodeLength-len(d)) + d
}

// NormalizeRegionCode devuelve la sigla de UF en mayúsculas (2 letras).
// Acepta también el nombre completo del estado ("São Paulo"). Entrada vacía o
// inválida produce fallback; si fallback tampoco es válido se usa DefaultRegion.
func NormalizeRegionCode(raw, fallback string) string {
	if uf, ok := regionCode(raw); ok {
		return uf
	}
	if uf, ok := regionCode(fallback); ok {
		return uf
	}
	return pkgfiscal.DefaultRegion
}

// ParseRegionCode como NormalizeRegionCode pero sin fallback: ok=false si la
// entrada no es una UF reconocible.
func ParseRegionCode(raw string) (string, bool) {
	return regionCode(raw)
}

func regionCode(raw string) (string, bool) {
	folded := strings.ToLower(strings.Join(strings.Fields(foldAccents(raw)), " "))
	if folded == "" {
		return "", false
	}
	if uf, ok := pkgfiscal.StateNames[folded]; ok {
		return uf, true
	}
	letters := strings.ToUpper(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return r
		}
		return -1
	}, folded))
	if len(letters) == 2 && pkgfiscal.ValidStates[letters] {
		return letters, true
	}
	return "", false
}

// NormalizeDisplayName recorta espacios y elimina comillas, < > y barra invertida.
// Entrada vacía produce fallback (etiqueta de consumidor genérico).
func NormalizeDisplayName(raw, fallback string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', '<', '>', '\\':
			return -1
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, raw)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return fallback
	}
	if r := []rune(cleaned); len(r) > pkgfiscal.MaxDisplayNameLength {
		cleaned = strings.TrimSpace(string(r[:pkgfiscal.MaxDisplayNameLength]))
	}
	return cleaned
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// foldAccents elimina marcas diacríticas ("São" → "Sao").
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
