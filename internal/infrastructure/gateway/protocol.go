package gateway

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ProtocolSummary datos del protocolo de autorización leídos del XML autorizado.
type ProtocolSummary struct {
	AccessKey      string // chNFe
	ProtocolNumber string // nProt
	StatusCode     string // cStat
	Reason         string // xMotivo
	ReceivedAt     string // dhRecbto
	Environment    string // tpAmb (1=produção, 2=homologação)
	IssuerTaxID    string // emit/CNPJ
	Total          string // total/ICMSTot/vNF
}

// InspectProtocol lee el XML del documento autorizado (nfeProc / procNFe) y
// devuelve el protocolo. Los prefijos de namespace se ignoran.
func InspectProtocol(xmlBytes []byte) (*ProtocolSummary, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("gateway: parsear XML autorizado: %w", err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("gateway: XML autorizado sin raíz")
	}

	prot := doc.FindElement("//infProt")
	if prot == nil {
		return nil, fmt.Errorf("gateway: el XML no contiene protocolo de autorización (infProt)")
	}

	s := &ProtocolSummary{
		AccessKey:      childText(prot, "chNFe"),
		ProtocolNumber: childText(prot, "nProt"),
		StatusCode:     childText(prot, "cStat"),
		Reason:         childText(prot, "xMotivo"),
		ReceivedAt:     childText(prot, "dhRecbto"),
		Environment:    childText(prot, "tpAmb"),
	}
	if emit := doc.FindElement("//emit"); emit != nil {
		s.IssuerTaxID = childText(emit, "CNPJ")
	}
	if tot := doc.FindElement("//total/ICMSTot"); tot != nil {
		s.Total = childText(tot, "vNF")
	}
	if s.AccessKey == "" {
		// la clave también aparece como atributo Id="NFe<chave>" en infNFe
		if inf := doc.FindElement("//infNFe"); inf != nil {
			s.AccessKey = strings.TrimPrefix(inf.SelectAttrValue("Id", ""), "NFe")
		}
	}
	return s, nil
}

// Authorized cStat 100 (autorizado) o 150 (autorizado fora de prazo).
func (s *ProtocolSummary) Authorized() bool {
	return s.StatusCode == "100" || s.StatusCode == "150"
}

func childText(el *etree.Element, tag string) string {
	if c := el.FindElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}
