package fiscal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// Address dirección tal como llega del negocio (campos opcionales).
type Address struct {
	Street           string
	Number           string
	District         string
	City             string
	State            string
	PostalCode       string
	MunicipalityCode string // código IBGE
}

// Party emisor o destinatario.
type Party struct {
	Name                  string
	TaxID                 string // CPF o CNPJ, con o sin puntuación
	StateRegistration     string
	MunicipalRegistration string
	Email                 string
	Phone                 string
	Address               Address
}

// LineItemInput línea capturada por el usuario; los campos vacíos reciben valores por defecto.
type LineItemInput struct {
	Code        string
	Description string
	Quantity    decimal.Decimal // cero = ausente → 1
	UnitPrice   decimal.Decimal
	Unit        string
	NCM         string
	CFOP        string
}

// Request FiscalDocumentRequest: datos efímeros del llamador.
type Request struct {
	Kind            pkgfiscal.DocumentKind
	Reference       string
	Environment     string // sandbox | production
	Issuer          Party
	Recipient       Party
	Items           []LineItemInput
	OrderTotal      decimal.Decimal // solo se usa si Items está vacío
	TaxRegime       string
	Freight         decimal.Decimal
	Insurance       decimal.Decimal
	Discount        decimal.Decimal
	OperationNature string
	ServiceListItem string
	Notes           string
	IssuedAt        time.Time
}

// TaxClassification códigos de situación tributaria resueltos.
type TaxClassification struct {
	ICMSOrigin      string
	ICMSSituation   string
	PISSituation    string
	COFINSSituation string
}

// LineItem NormalizedLineItem: cantidad > 0, precio ≥ 0, Total = Quantity × UnitPrice.
type LineItem struct {
	Number      int
	Code        string
	Description string
	Unit        string
	NCM         string
	CFOP        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Total       decimal.Decimal
	Taxes       TaxClassification
}

// Document documento listo para el gateway. Exactamente uno de Goods/Service
// está presente según Kind.
type Document struct {
	Kind        pkgfiscal.DocumentKind
	Reference   string
	Environment string
	Regime      pkgfiscal.TaxRegime
	Taxes       TaxClassification
	Lines       []LineItem
	Total       decimal.Decimal
	Recipient   ResolvedRecipient
	Diagnostics []string

	Goods   *GoodsPayload
	Service *ServicePayload
}

// ResolvedRecipient destinatario después de normalización y valores por defecto.
type ResolvedRecipient struct {
	Name      string
	CPF       string
	CNPJ      string
	Anonymous bool
	State     string
}

// Payload devuelve el cuerpo JSON a enviar según el tipo de documento.
func (d *Document) Payload() any {
	if d.Service != nil {
		return d.Service
	}
	return d.Goods
}

// Hash SHA-256 del payload sin la fecha de emisión; identifica el documento
// lógico detrás de una referencia y es estable entre reintentos.
func (d *Document) Hash() (string, error) {
	var payload any
	switch {
	case d.Service != nil:
		s := *d.Service
		s.DataEmissao = ""
		payload = s
	case d.Goods != nil:
		g := *d.Goods
		g.DataEmissao = ""
		payload = g
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ── Payload de mercadorias (NF-e / NFC-e) ─────────────────────────────────────

// GoodsPayload esquema de líneas de ítems.
type GoodsPayload struct {
	NaturezaOperacao  string `json:"natureza_operacao"`
	DataEmissao       string `json:"data_emissao,omitempty"`
	TipoDocumento     int    `json:"tipo_documento"`
	FinalidadeEmissao int    `json:"finalidade_emissao"`
	LocalDestino      int    `json:"local_destino"`
	ConsumidorFinal   int    `json:"consumidor_final"`
	PresencaComprador int    `json:"presenca_comprador"`

	CNPJEmitente              string `json:"cnpj_emitente"`
	NomeEmitente              string `json:"nome_emitente"`
	InscricaoEstadualEmitente string `json:"inscricao_estadual_emitente,omitempty"`
	LogradouroEmitente        string `json:"logradouro_emitente"`
	NumeroEmitente            string `json:"numero_emitente"`
	BairroEmitente            string `json:"bairro_emitente"`
	MunicipioEmitente         string `json:"municipio_emitente"`
	UFEmitente                string `json:"uf_emitente"`
	CEPEmitente               string `json:"cep_emitente"`
	TelefoneEmitente          string `json:"telefone_emitente,omitempty"`
	RegimeTributarioEmitente  int    `json:"regime_tributario_emitente"`

	NomeDestinatario                       string `json:"nome_destinatario"`
	CPFDestinatario                        string `json:"cpf_destinatario,omitempty"`
	CNPJDestinatario                       string `json:"cnpj_destinatario,omitempty"`
	LogradouroDestinatario                 string `json:"logradouro_destinatario"`
	NumeroDestinatario                     string `json:"numero_destinatario"`
	BairroDestinatario                     string `json:"bairro_destinatario"`
	MunicipioDestinatario                  string `json:"municipio_destinatario"`
	UFDestinatario                         string `json:"uf_destinatario"`
	CEPDestinatario                        string `json:"cep_destinatario"`
	TelefoneDestinatario                   string `json:"telefone_destinatario,omitempty"`
	EmailDestinatario                      string `json:"email_destinatario,omitempty"`
	IndicadorInscricaoEstadualDestinatario int    `json:"indicador_inscricao_estadual_destinatario"`

	ValorProdutos         string `json:"valor_produtos"`
	ValorFrete            string `json:"valor_frete"`
	ValorSeguro           string `json:"valor_seguro"`
	ValorDesconto         string `json:"valor_desconto"`
	ValorTotal            string `json:"valor_total"`
	ModalidadeFrete       int    `json:"modalidade_frete"`
	InformacoesAdicionais string `json:"informacoes_adicionais_contribuinte,omitempty"`

	Items           []GoodsItem    `json:"items"`
	FormasPagamento []PaymentEntry `json:"formas_pagamento,omitempty"`
}

// GoodsItem ítem del payload de mercadorias.
type GoodsItem struct {
	NumeroItem               int    `json:"numero_item"`
	CodigoProduto            string `json:"codigo_produto"`
	Descricao                string `json:"descricao"`
	CFOP                     string `json:"cfop"`
	CodigoNCM                string `json:"codigo_ncm"`
	UnidadeComercial         string `json:"unidade_comercial"`
	QuantidadeComercial      string `json:"quantidade_comercial"`
	ValorUnitarioComercial   string `json:"valor_unitario_comercial"`
	UnidadeTributavel        string `json:"unidade_tributavel"`
	QuantidadeTributavel     string `json:"quantidade_tributavel"`
	ValorUnitarioTributavel  string `json:"valor_unitario_tributavel"`
	ValorBruto               string `json:"valor_bruto"`
	ICMSOrigem               string `json:"icms_origem"`
	ICMSSituacaoTributaria   string `json:"icms_situacao_tributaria"`
	PISSituacaoTributaria    string `json:"pis_situacao_tributaria"`
	COFINSSituacaoTributaria string `json:"cofins_situacao_tributaria"`
}

// PaymentEntry forma de pago (obligatoria en NFC-e).
type PaymentEntry struct {
	FormaPagamento string `json:"forma_pagamento"`
	ValorPagamento string `json:"valor_pagamento"`
}

// ── Payload de servicios (NFS-e) ──────────────────────────────────────────────

// ServicePayload esquema orientado a servicio con un único bloque agregado.
type ServicePayload struct {
	DataEmissao string         `json:"data_emissao,omitempty"`
	Prestador   ServiceParty   `json:"prestador"`
	Tomador     ServiceTaker   `json:"tomador"`
	Servico     ServiceSummary `json:"servico"`
}

// ServiceParty prestador del servicio (emisor).
type ServiceParty struct {
	CNPJ               string `json:"cnpj"`
	InscricaoMunicipal string `json:"inscricao_municipal,omitempty"`
	CodigoMunicipio    string `json:"codigo_municipio,omitempty"`
}

// ServiceTaker tomador del servicio (destinatario).
type ServiceTaker struct {
	CPF         string         `json:"cpf,omitempty"`
	CNPJ        string         `json:"cnpj,omitempty"`
	RazaoSocial string         `json:"razao_social"`
	Email       string         `json:"email,omitempty"`
	Telefone    string         `json:"telefone,omitempty"`
	Endereco    ServiceAddress `json:"endereco"`
}

// ServiceAddress dirección del tomador.
type ServiceAddress struct {
	Logradouro      string `json:"logradouro"`
	Numero          string `json:"numero"`
	Bairro          string `json:"bairro"`
	CodigoMunicipio string `json:"codigo_municipio,omitempty"`
	UF              string `json:"uf"`
	CEP             string `json:"cep"`
}

// ServiceSummary bloque agregado de servicio.
type ServiceSummary struct {
	ValorServicos    string `json:"valor_servicos"`
	Discriminacao    string `json:"discriminacao"`
	ItemListaServico string `json:"item_lista_servico"`
	ISSRetido        bool   `json:"iss_retido"`
}
