package fiscal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// Defaults valores por defecto inyectados al Builder. Los de sandbox quedan
// aquí, nombrados, en lugar de literales dentro de la lógica.
type Defaults struct {
	Region               string // UF cuando la entrada es vacía o inválida
	SandboxIndividualID  string // CPF de prueba para destinatarios sin documento en sandbox
	NCM                  string
	CFOP                 string // operación interna
	InterstateCFOP       string // operación interestatal
	Unit                 string
	ConsumerLabel        string // nombre del consumidor genérico
	SandboxConsumerLabel string // nombre del consumidor genérico en sandbox
	ServiceListItem      string
}

// StandardDefaults valores por defecto documentados.
func StandardDefaults() Defaults {
	return Defaults{
		Region:               pkgfiscal.DefaultRegion,
		SandboxIndividualID:  "03055054911",
		NCM:                  "49111090",
		CFOP:                 "5102",
		InterstateCFOP:       "6102",
		Unit:                 "UN",
		ConsumerLabel:        "CONSUMIDOR FINAL",
		SandboxConsumerLabel: "CONSUMIDOR FINAL (HOMOLOGACAO - SEM VALOR FISCAL)",
		ServiceListItem:      pkgfiscal.DefaultServiceListItem,
	}
}

// withFallbacks completa los campos vacíos con StandardDefaults.
func (d Defaults) withFallbacks() Defaults {
	std := StandardDefaults()
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return Defaults{
		Region:               pick(d.Region, std.Region),
		SandboxIndividualID:  pick(d.SandboxIndividualID, std.SandboxIndividualID),
		NCM:                  pick(d.NCM, std.NCM),
		CFOP:                 pick(d.CFOP, std.CFOP),
		InterstateCFOP:       pick(d.InterstateCFOP, std.InterstateCFOP),
		Unit:                 pick(d.Unit, std.Unit),
		ConsumerLabel:        pick(d.ConsumerLabel, std.ConsumerLabel),
		SandboxConsumerLabel: pick(d.SandboxConsumerLabel, std.SandboxConsumerLabel),
		ServiceListItem:      pick(d.ServiceListItem, std.ServiceListItem),
	}
}

// ConsumerName etiqueta de consumidor genérico según el ambiente.
func (d Defaults) ConsumerName(sandbox bool) string {
	if sandbox {
		return d.SandboxConsumerLabel
	}
	return d.ConsumerLabel
}

// Builder construye documentos conformes al esquema del gateway. Es puro: no
// hace I/O y no guarda estado entre llamadas.
type Builder struct {
	defaults Defaults
}

// NewBuilder construye el Builder; los campos vacíos de d toman StandardDefaults.
func NewBuilder(d Defaults) *Builder {
	return &Builder{defaults: d.withFallbacks()}
}

// Defaults devuelve los valores efectivos del Builder.
func (b *Builder) Defaults() Defaults { return b.defaults }

// Build valida y construye el documento. Ante datos obligatorios faltantes
// devuelve un *domain.FiscalError (ErrValidation) con todos los problemas
// encontrados, nunca un documento parcial.
func (b *Builder) Build(req Request) (*Document, error) {
	sandbox := req.Environment != pkgfiscal.EnvironmentProduction
	env := pkgfiscal.EnvironmentSandbox
	if !sandbox {
		env = pkgfiscal.EnvironmentProduction
	}

	var problems []string
	if !req.Kind.Valid() {
		problems = append(problems, fmt.Sprintf("tipo de documento inválido: %q", req.Kind))
	}
	ref := strings.TrimSpace(req.Reference)
	switch {
	case ref == "":
		problems = append(problems, "referencia requerida")
	case len(ref) > pkgfiscal.MaxReferenceLength:
		problems = append(problems, fmt.Sprintf("referencia excede %d caracteres", pkgfiscal.MaxReferenceLength))
	}

	issuerTaxID := NormalizeTaxID(req.Issuer.TaxID)
	if issuerTaxID == "" {
		problems = append(problems, "CNPJ del emisor requerido")
	}
	issuerName := NormalizeDisplayName(req.Issuer.Name, "")
	if issuerName == "" {
		problems = append(problems, "razón social del emisor requerida")
	}
	recipientName := NormalizeDisplayName(req.Recipient.Name, "")
	if recipientName == "" {
		if req.Kind == pkgfiscal.KindConsumerInvoice {
			recipientName = b.defaults.ConsumerName(sandbox)
		} else {
			problems = append(problems, "nombre del destinatario requerido")
		}
	}
	if req.Freight.IsNegative() {
		problems = append(problems, "valor de flete negativo")
	}
	if req.Insurance.IsNegative() {
		problems = append(problems, "valor de seguro negativo")
	}
	if req.Discount.IsNegative() {
		problems = append(problems, "valor de descuento negativo")
	}

	regime := pkgfiscal.ParseTaxRegime(req.TaxRegime)
	taxes, known := ResolveTaxClassification(regime)
	var diagnostics []string
	if !known {
		diagnostics = append(diagnostics, fmt.Sprintf("regime tributário desconocido %q: se usan los códigos del Simples Nacional", req.TaxRegime))
	}

	issuerUF := NormalizeRegionCode(req.Issuer.Address.State, b.defaults.Region)
	recipientAddr := fallbackAddress(req.Recipient.Address, req.Issuer.Address)
	recipientUF := NormalizeRegionCode(recipientAddr.State, issuerUF)
	interstate := req.Kind == pkgfiscal.KindGoodsInvoice && recipientUF != issuerUF

	lines, lineProblems := b.buildLines(req, taxes, interstate)
	problems = append(problems, lineProblems...)

	productsTotal := decimal.Zero
	for _, l := range lines {
		productsTotal = productsTotal.Add(l.Total)
	}
	total := productsTotal.Add(req.Freight).Add(req.Insurance).Sub(req.Discount)
	if len(lineProblems) == 0 && total.IsNegative() {
		problems = append(problems, fmt.Sprintf("el descuento %s supera el total del documento (%s)",
			money(req.Discount), money(productsTotal.Add(req.Freight).Add(req.Insurance))))
	}

	if len(problems) > 0 {
		return nil, domain.NewValidationError("documento fiscal incompleto", problems...)
	}

	recipient := b.resolveRecipient(req.Recipient.TaxID, recipientName, recipientUF, sandbox)

	doc := &Document{
		Kind:        req.Kind,
		Reference:   ref,
		Environment: env,
		Regime:      regime,
		Taxes:       taxes,
		Lines:       lines,
		Total:       total,
		Recipient:   recipient,
		Diagnostics: diagnostics,
	}

	issuedAt := ""
	if !req.IssuedAt.IsZero() {
		issuedAt = req.IssuedAt.Format("2006-01-02T15:04:05-07:00")
	}

	switch req.Kind {
	case pkgfiscal.KindServiceInvoice:
		doc.Service = b.servicePayload(req, recipient, recipientAddr, lines, productsTotal, issuedAt)
	default:
		doc.Goods = b.goodsPayload(req, regime, recipient, recipientAddr, issuerName, issuerUF, lines, productsTotal, total, interstate, issuedAt)
	}
	return doc, nil
}

// buildLines normaliza los ítems del llamador o sintetiza uno solo a partir del
// total del pedido (camino legado).
func (b *Builder) buildLines(req Request, taxes TaxClassification, interstate bool) ([]LineItem, []string) {
	cfop := b.defaults.CFOP
	if interstate {
		cfop = b.defaults.InterstateCFOP
	}

	if len(req.Items) == 0 {
		if !req.OrderTotal.IsPositive() {
			return nil, []string{"sin ítems: el total del pedido debe ser mayor que cero"}
		}
		desc := pkgfiscal.DefaultGenericItemLabel
		if req.Kind == pkgfiscal.KindServiceInvoice {
			desc = pkgfiscal.DefaultGenericServiceLabel
		}
		return []LineItem{{
			Number:      1,
			Code:        "1",
			Description: desc,
			Unit:        b.defaults.Unit,
			NCM:         b.defaults.NCM,
			CFOP:        cfop,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   req.OrderTotal,
			Total:       req.OrderTotal,
			Taxes:       taxes,
		}}, nil
	}

	var problems []string
	lines := make([]LineItem, 0, len(req.Items))
	for i, it := range req.Items {
		n := i + 1
		qty := it.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		if qty.IsNegative() {
			problems = append(problems, fmt.Sprintf("ítem %d: la cantidad debe ser mayor que cero", n))
		}
		if it.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("ítem %d: precio unitario negativo", n))
		}
		desc := NormalizeDisplayName(it.Description, "")
		if desc == "" {
			desc = fmt.Sprintf("Item %d", n)
		}
		code := strings.TrimSpace(it.Code)
		if code == "" {
			code = fmt.Sprintf("%d", n)
		}
		lineCFOP := digitsOnly(it.CFOP)
		if lineCFOP == "" {
			lineCFOP = cfop
		}
		lines = append(lines, LineItem{
			Number:      n,
			Code:        code,
			Description: desc,
			Unit:        orDefault(strings.ToUpper(strings.TrimSpace(it.Unit)), b.defaults.Unit),
			NCM:         orDefault(digitsOnly(it.NCM), b.defaults.NCM),
			CFOP:        lineCFOP,
			Quantity:    qty,
			UnitPrice:   it.UnitPrice,
			Total:       qty.Mul(it.UnitPrice),
			Taxes:       taxes,
		})
	}
	return lines, problems
}

// resolveRecipient decide el campo de documento: 11 dígitos CPF, 14 CNPJ; en
// otro caso sandbox usa el CPF de prueba y producción deja al destinatario anónimo.
func (b *Builder) resolveRecipient(rawTaxID, name, uf string, sandbox bool) ResolvedRecipient {
	r := ResolvedRecipient{Name: name, State: uf}
	digits := NormalizeTaxID(rawTaxID)
	switch {
	case len(digits) == pkgfiscal.IndividualTaxIDLength:
		r.CPF = digits
	case len(digits) == pkgfiscal.OrganizationTaxIDLength:
		r.CNPJ = digits
	case sandbox:
		r.CPF = b.defaults.SandboxIndividualID
	default:
		r.Anonymous = true
	}
	return r
}

func (b *Builder) goodsPayload(
	req Request,
	regime pkgfiscal.TaxRegime,
	recipient ResolvedRecipient,
	recipientAddr Address,
	issuerName, issuerUF string,
	lines []LineItem,
	productsTotal, total decimal.Decimal,
	interstate bool,
	issuedAt string,
) *GoodsPayload {
	nature := strings.TrimSpace(req.OperationNature)
	if nature == "" {
		nature = pkgfiscal.DefaultOperationNature
	}
	destination := pkgfiscal.DestinationInternal
	if interstate {
		destination = pkgfiscal.DestinationInterstate
	}
	p := &GoodsPayload{
		NaturezaOperacao:  nature,
		DataEmissao:       issuedAt,
		TipoDocumento:     pkgfiscal.DocumentTypeOutbound,
		FinalidadeEmissao: pkgfiscal.PurposeNormal,
		LocalDestino:      destination,
		ConsumidorFinal:   1,
		PresencaComprador: pkgfiscal.BuyerPresenceInPerson,

		CNPJEmitente:              NormalizeTaxID(req.Issuer.TaxID),
		NomeEmitente:              issuerName,
		InscricaoEstadualEmitente: digitsOnly(req.Issuer.StateRegistration),
		LogradouroEmitente:        strings.TrimSpace(req.Issuer.Address.Street),
		NumeroEmitente:            orDefault(strings.TrimSpace(req.Issuer.Address.Number), "S/N"),
		BairroEmitente:            strings.TrimSpace(req.Issuer.Address.District),
		MunicipioEmitente:         strings.TrimSpace(req.Issuer.Address.City),
		UFEmitente:                issuerUF,
		CEPEmitente:               NormalizePostalCode(req.Issuer.Address.PostalCode),
		TelefoneEmitente:          NormalizePhone(req.Issuer.Phone),
		RegimeTributarioEmitente:  regime.RegimeCode(),

		NomeDestinatario:                       recipient.Name,
		CPFDestinatario:                        recipient.CPF,
		CNPJDestinatario:                       recipient.CNPJ,
		LogradouroDestinatario:                 recipientAddr.Street,
		NumeroDestinatario:                     orDefault(recipientAddr.Number, "S/N"),
		BairroDestinatario:                     recipientAddr.District,
		MunicipioDestinatario:                  recipientAddr.City,
		UFDestinatario:                         recipient.State,
		CEPDestinatario:                        NormalizePostalCode(recipientAddr.PostalCode),
		TelefoneDestinatario:                   NormalizePhone(req.Recipient.Phone),
		EmailDestinatario:                      strings.TrimSpace(req.Recipient.Email),
		IndicadorInscricaoEstadualDestinatario: pkgfiscal.RecipientIENotContributor,

		ValorProdutos:         money(productsTotal),
		ValorFrete:            money(req.Freight),
		ValorSeguro:           money(req.Insurance),
		ValorDesconto:         money(req.Discount),
		ValorTotal:            money(total),
		ModalidadeFrete:       pkgfiscal.FreightModeNone,
		InformacoesAdicionais: strings.TrimSpace(req.Notes),
	}
	p.Items = make([]GoodsItem, 0, len(lines))
	for _, l := range lines {
		p.Items = append(p.Items, GoodsItem{
			NumeroItem:               l.Number,
			CodigoProduto:            l.Code,
			Descricao:                l.Description,
			CFOP:                     l.CFOP,
			CodigoNCM:                l.NCM,
			UnidadeComercial:         l.Unit,
			QuantidadeComercial:      quantity(l.Quantity),
			ValorUnitarioComercial:   money(l.UnitPrice),
			UnidadeTributavel:        l.Unit,
			QuantidadeTributavel:     quantity(l.Quantity),
			ValorUnitarioTributavel:  money(l.UnitPrice),
			ValorBruto:               money(l.Total),
			ICMSOrigem:               l.Taxes.ICMSOrigin,
			ICMSSituacaoTributaria:   l.Taxes.ICMSSituation,
			PISSituacaoTributaria:    l.Taxes.PISSituation,
			COFINSSituacaoTributaria: l.Taxes.COFINSSituation,
		})
	}
	if req.Kind == pkgfiscal.KindConsumerInvoice {
		p.FormasPagamento = []PaymentEntry{{
			FormaPagamento: pkgfiscal.PaymentMethodCash,
			ValorPagamento: money(total),
		}}
	}
	return p
}

func (b *Builder) servicePayload(
	req Request,
	recipient ResolvedRecipient,
	recipientAddr Address,
	lines []LineItem,
	servicesTotal decimal.Decimal,
	issuedAt string,
) *ServicePayload {
	descs := make([]string, 0, len(lines))
	for _, l := range lines {
		descs = append(descs, l.Description)
	}
	item := strings.TrimSpace(req.ServiceListItem)
	if item == "" {
		item = b.defaults.ServiceListItem
	}
	return &ServicePayload{
		DataEmissao: issuedAt,
		Prestador: ServiceParty{
			CNPJ:               NormalizeTaxID(req.Issuer.TaxID),
			InscricaoMunicipal: digitsOnly(req.Issuer.MunicipalRegistration),
			CodigoMunicipio:    digitsOnly(req.Issuer.Address.MunicipalityCode),
		},
		Tomador: ServiceTaker{
			CPF:         recipient.CPF,
			CNPJ:        recipient.CNPJ,
			RazaoSocial: recipient.Name,
			Email:       strings.TrimSpace(req.Recipient.Email),
			Telefone:    NormalizePhone(req.Recipient.Phone),
			Endereco: ServiceAddress{
				Logradouro:      recipientAddr.Street,
				Numero:          orDefault(recipientAddr.Number, "S/N"),
				Bairro:          recipientAddr.District,
				CodigoMunicipio: digitsOnly(recipientAddr.MunicipalityCode),
				UF:              recipient.State,
				CEP:             NormalizePostalCode(recipientAddr.PostalCode),
			},
		},
		Servico: ServiceSummary{
			ValorServicos:    money(servicesTotal),
			Discriminacao:    strings.Join(descs, "; "),
			ItemListaServico: item,
		},
	}
}

// fallbackAddress completa cada campo vacío del destinatario con el del emisor,
// para que los envíos de prueba sigan siendo válidos frente al esquema.
func fallbackAddress(recipient, issuer Address) Address {
	pick := func(r, i string) string {
		if r = strings.TrimSpace(r); r != "" {
			return r
		}
		return strings.TrimSpace(i)
	}
	return Address{
		Street:           pick(recipient.Street, issuer.Street),
		Number:           pick(recipient.Number, issuer.Number),
		District:         pick(recipient.District, issuer.District),
		City:             pick(recipient.City, issuer.City),
		State:            pick(recipient.State, issuer.State),
		PostalCode:       pick(recipient.PostalCode, issuer.PostalCode),
		MunicipalityCode: pick(recipient.MunicipalityCode, issuer.MunicipalityCode),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func money(d decimal.Decimal) string    { return d.Round(2).StringFixed(2) }
func quantity(d decimal.Decimal) string { return d.StringFixed(4) }
