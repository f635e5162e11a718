// Package pdf genera la vista previa (borrador sin valor fiscal) de un documento
// construido, antes de enviarlo al gateway.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razão social + CNPJ  │  Tipo + Referencia + Fecha  │
//	│  AVISO: PRÉVIA - SEM VALOR FISCAL                           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMITENTE: Dirección / IE / Tel                              │
//	│  DESTINATÁRIO: Nombre + CPF/CNPJ + UF                        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: # | Descripción | NCM | CFOP | Qtd | V.Unit | Total  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Productos / Flete / Seguro / Descuento / TOTAL     │
//	│  TRIBUTACIÓN: CST ICMS / PIS / COFINS + diagnósticos         │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWarning = &props.Color{Red: 180, Green: 30, Blue: 30}
)

var kindTitles = map[pkgfiscal.DocumentKind]string{
	pkgfiscal.KindGoodsInvoice:    "NOTA FISCAL ELETRÔNICA (NF-e)",
	pkgfiscal.KindConsumerInvoice: "NOTA FISCAL DE CONSUMIDOR (NFC-e)",
	pkgfiscal.KindServiceInvoice:  "NOTA FISCAL DE SERVIÇOS (NFS-e)",
}

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoPreviewRenderer implementa billing.PreviewRenderer usando Maroto v2.
type MarotoPreviewRenderer struct {
	money *message.Printer
}

// NewMarotoPreviewRenderer construye el generador con formato monetario pt-BR.
func NewMarotoPreviewRenderer() *MarotoPreviewRenderer {
	return &MarotoPreviewRenderer{money: message.NewPrinter(language.BrazilianPortuguese)}
}

// RenderPreview genera el PDF borrador y devuelve sus bytes.
func (g *MarotoPreviewRenderer) RenderPreview(doc *fiscal.Document, issuer *entity.Company) ([]byte, error) {
	if doc == nil || issuer == nil {
		return nil, fmt.Errorf("pdf: documento y emisor son obligatorios")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Prévia "+doc.Reference, true).
		WithAuthor(issuer.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc, issuer))
	m.AddRows(warningRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(issuerRow(issuer))
	m.AddRows(recipientRow(doc.Recipient))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.tableDetailRows(doc.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalsRow(doc))
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(taxRows(doc)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(doc *fiscal.Document, issuer *entity.Company) core.Row {
	title := kindTitles[doc.Kind]
	if title == "" {
		title = strings.ToUpper(string(doc.Kind))
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(issuer.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+formatCNPJ(fiscal.NormalizeTaxID(issuer.CNPJ)), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("Ref. "+doc.Reference, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Emissão: "+issuedAt(doc), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func warningRow(doc *fiscal.Document) core.Row {
	label := "PRÉVIA - SEM VALOR FISCAL"
	if doc.Environment == pkgfiscal.EnvironmentSandbox {
		label += " (HOMOLOGAÇÃO)"
	}
	return row.New(8).Add(col.New(12).Add(
		text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Center, Color: colorWarning, Top: 2,
		}),
	))
}

func issuerRow(c *entity.Company) core.Row {
	addr := strings.TrimSpace(fmt.Sprintf("%s, %s - %s, %s/%s",
		nonEmpty(c.Street, "—"), nonEmpty(c.Number, "S/N"), nonEmpty(c.District, "—"),
		nonEmpty(c.City, "—"), nonEmpty(c.State, "—")))
	return row.New(12).Add(
		col.New(12).Add(
			text.New("EMITENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   IE: %s   |   Tel: %s",
				addr, nonEmpty(c.StateRegistration, "—"), nonEmpty(c.Phone, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func recipientRow(r fiscal.ResolvedRecipient) core.Row {
	id := "não identificado"
	switch {
	case r.CNPJ != "":
		id = "CNPJ " + formatCNPJ(r.CNPJ)
	case r.CPF != "":
		id = "CPF " + formatCPF(r.CPF)
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("DESTINATÁRIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(r.Name, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("%s   |   UF: %s", id, nonEmpty(r.State, "—")),
				props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("#", 1, align.Center),
		h("Descrição", 4, align.Left),
		h("NCM", 1, align.Center),
		h("CFOP", 1, align.Center),
		h("Qtd.", 1, align.Right),
		h("V. Unit.", 2, align.Right),
		h("V. Total", 2, align.Right),
	)
}

func (g *MarotoPreviewRenderer) tableDetailRows(lines []fiscal.LineItem) []core.Row {
	cell := func(s string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(s, props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}))
	}
	rows := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, row.New(7).Add(
			cell(fmt.Sprint(l.Number), 1, align.Center),
			cell(l.Description, 4, align.Left),
			cell(l.NCM, 1, align.Center),
			cell(l.CFOP, 1, align.Center),
			cell(l.Quantity.String()+" "+l.Unit, 1, align.Right),
			cell(g.formatMoney(l.UnitPrice), 2, align.Right),
			cell(g.formatMoney(l.Total), 2, align.Right),
		))
	}
	return rows
}

func (g *MarotoPreviewRenderer) totalsRow(doc *fiscal.Document) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grand := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: top})
	}

	products, freight, insurance, discount := doc.Total, decimal.Zero, decimal.Zero, decimal.Zero
	if doc.Goods != nil {
		products = amount(doc.Goods.ValorProdutos)
		freight = amount(doc.Goods.ValorFrete)
		insurance = amount(doc.Goods.ValorSeguro)
		discount = amount(doc.Goods.ValorDesconto)
	}

	return row.New(30).Add(
		col.New(6),
		col.New(3).Add(
			label("Produtos/Serviços:", 0),
			label("Frete:", 5),
			label("Seguro:", 10),
			label("Desconto:", 15),
			label("TOTAL:", 21),
		),
		col.New(3).Add(
			value(g.formatMoney(products), 0),
			value(g.formatMoney(freight), 5),
			value(g.formatMoney(insurance), 10),
			value("- "+g.formatMoney(discount), 15),
			grand(g.formatMoney(doc.Total), 21),
		),
	)
}

func taxRows(doc *fiscal.Document) []core.Row {
	t := doc.Taxes
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("TRIBUTAÇÃO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(fmt.Sprintf("Regime: %s   |   ICMS: %s/%s   |   PIS: %s   |   COFINS: %s",
				doc.Regime, t.ICMSOrigin, t.ICMSSituation, t.PISSituation, t.COFINSSituation),
				props.Text{Size: 8, Color: colorGray, Top: 0.5, Left: 2}),
		)),
	}
	for _, d := range doc.Diagnostics {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Aviso: "+d, props.Text{Size: 7, Color: colorWarning, Top: 0.5, Left: 2}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func issuedAt(doc *fiscal.Document) string {
	raw := ""
	switch {
	case doc.Goods != nil:
		raw = doc.Goods.DataEmissao
	case doc.Service != nil:
		raw = doc.Service.DataEmissao
	}
	if len(raw) >= 10 {
		// AAAA-MM-DD → DD/MM/AAAA
		return raw[8:10] + "/" + raw[5:7] + "/" + raw[0:4]
	}
	return "—"
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// formatMoney formato pt-BR: "R$ 1.234,56".
func (g *MarotoPreviewRenderer) formatMoney(v decimal.Decimal) string {
	return g.money.Sprintf("R$ %.2f", v.Round(2).InexactFloat64())
}

// formatCNPJ 11222333000181 → 11.222.333/0001-81; otros largos se devuelven igual.
func formatCNPJ(s string) string {
	if len(s) != pkgfiscal.OrganizationTaxIDLength {
		return s
	}
	return s[0:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:14]
}

// formatCPF 12345678909 → 123.456.789-09.
func formatCPF(s string) string {
	if len(s) != pkgfiscal.IndividualTaxIDLength {
		return s
	}
	return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
}
