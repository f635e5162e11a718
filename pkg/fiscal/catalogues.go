// Package fiscal contiene catálogos de la emisión de documentos fiscales
// electrónicos (NF-e, NFC-e, NFS-e) usados por el motor de emisión y el
// gateway externo.
package fiscal

import "strings"

// =============================================================================
// Tipos de documento y segmento de ruta en el gateway
// =============================================================================

// DocumentKind identifica el tipo de documento fiscal.
type DocumentKind string

const (
	KindGoodsInvoice    DocumentKind = "goods-invoice"    // NF-e (modelo 55)
	KindConsumerInvoice DocumentKind = "consumer-invoice" // NFC-e (modelo 65)
	KindServiceInvoice  DocumentKind = "service-invoice"  // NFS-e
)

// gatewayPaths segmento {docKind} de las rutas del gateway.
var gatewayPaths = map[DocumentKind]string{
	KindGoodsInvoice:    "nfe",
	KindConsumerInvoice: "nfce",
	KindServiceInvoice:  "nfse",
}

// Valid indica si el tipo de documento es conocido.
func (k DocumentKind) Valid() bool {
	_, ok := gatewayPaths[k]
	return ok
}

// GatewayPath devuelve el segmento de ruta del gateway para el tipo ("nfe", "nfce", "nfse").
func (k DocumentKind) GatewayPath() string {
	return gatewayPaths[k]
}

// =============================================================================
// Ambiente
// =============================================================================

const (
	EnvironmentSandbox    = "sandbox"    // homologação
	EnvironmentProduction = "production" // produção
)

// =============================================================================
// Regime tributário del emisor
// =============================================================================

// TaxRegime regime tributário normalizado.
type TaxRegime string

const (
	RegimeSimplified        TaxRegime = "simplified"         // Simples Nacional
	RegimeMicroEntrepreneur TaxRegime = "micro-entrepreneur" // MEI
	RegimeStandard          TaxRegime = "standard"           // Regime normal (lucro presumido / real)
	RegimeUnknown           TaxRegime = "unknown"
)

// regimeAliases nombres aceptados en la entrada (minúsculas, sin acentos).
var regimeAliases = map[string]TaxRegime{
	"simplified":         RegimeSimplified,
	"simples":            RegimeSimplified,
	"simples_nacional":   RegimeSimplified,
	"simples nacional":   RegimeSimplified,
	"1":                  RegimeSimplified,
	"micro-entrepreneur": RegimeMicroEntrepreneur,
	"micro_entrepreneur": RegimeMicroEntrepreneur,
	"mei":                RegimeMicroEntrepreneur,
	"4":                  RegimeMicroEntrepreneur,
	"standard":           RegimeStandard,
	"normal":             RegimeStandard,
	"regime_normal":      RegimeStandard,
	"lucro_presumido":    RegimeStandard,
	"lucro_real":         RegimeStandard,
	"3":                  RegimeStandard,
}

// ParseTaxRegime traduce el texto libre del regime; si no se reconoce devuelve RegimeUnknown.
func ParseTaxRegime(s string) TaxRegime {
	if r, ok := regimeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r
	}
	return RegimeUnknown
}

// RegimeCode código regime_tributario_emitente del gateway (1=Simples, 3=Normal, 4=MEI).
func (r TaxRegime) RegimeCode() int {
	switch r {
	case RegimeStandard:
		return 3
	case RegimeMicroEntrepreneur:
		return 4
	default:
		return 1
	}
}

// =============================================================================
// Situações tributárias (CSOSN / CST)
// =============================================================================

const (
	ICMSOriginNational = "0" // Nacional

	ICMSSimplifiedNoCredit = "102" // CSOSN 102 - Simples sem permissão de crédito
	ICMSStandardNotTaxed   = "41"  // CST 41 - Não tributada

	PISOperationNotTaxed    = "07" // Operação isenta da contribuição
	COFINSOperationNotTaxed = "07"
)

// =============================================================================
// Valores fijos del payload de mercadorias
// =============================================================================

const (
	DocumentTypeOutbound       = 1 // tipo_documento: saída
	PurposeNormal              = 1 // finalidade_emissao: normal
	FreightModeNone            = 9 // modalidade_frete: sem frete
	RecipientIENotContributor  = 9 // indicador_inscricao_estadual_destinatario: não contribuinte
	DestinationInternal        = 1 // local_destino: operação interna
	DestinationInterstate      = 2 // local_destino: operação interestadual
	BuyerPresenceInPerson      = 1 // presenca_comprador: presencial
	PaymentMethodCash          = "01"
	DefaultOperationNature     = "Venda de mercadoria"
	DefaultServiceNature       = "Prestação de serviço"
	DefaultServiceListItem     = "0107"
	DefaultGenericItemLabel    = "Venda de mercadorias"
	DefaultGenericServiceLabel = "Prestação de serviços"
)

// =============================================================================
// Unidades federativas
// =============================================================================

// StateNames nombres de UF sin acentos y en minúsculas → sigla.
var StateNames = map[string]string{
	"acre": "AC", "alagoas": "AL", "amapa": "AP", "amazonas": "AM", "bahia": "BA",
	"ceara": "CE", "distrito federal": "DF", "espirito santo": "ES", "goias": "GO",
	"maranhao": "MA", "mato grosso": "MT", "mato grosso do sul": "MS", "minas gerais": "MG",
	"para": "PA", "paraiba": "PB", "parana": "PR", "pernambuco": "PE", "piaui": "PI",
	"rio de janeiro": "RJ", "rio grande do norte": "RN", "rio grande do sul": "RS",
	"rondonia": "RO", "roraima": "RR", "santa catarina": "SC", "sao paulo": "SP",
	"sergipe": "SE", "tocantins": "TO",
}

// ValidStates siglas válidas de UF.
var ValidStates = func() map[string]bool {
	m := make(map[string]bool, len(StateNames))
	for _, uf := range StateNames {
		m[uf] = true
	}
	return m
}()

// =============================================================================
// Límites del gateway
// =============================================================================

const (
	MaxReferenceLength      = 44
	MinJustificationLength  = 15
	MaxJustificationLength  = 255
	MaxCorrectionTextLength = 1000
	MaxAmendments           = 20
	MaxDisplayNameLength    = 60
	PostalCodeLength        = 8
	MaxPhoneLength          = 11
	IndividualTaxIDLength   = 11 // CPF
	OrganizationTaxIDLength = 14 // CNPJ
	PhoneCountryCode        = "55"
	EmptyPostalCode         = "00000000"
	DefaultRegion           = "SP"
)
