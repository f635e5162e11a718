package fiscal

import pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"

var (
	simplifiedTaxes = TaxClassification{
		ICMSOrigin:      pkgfiscal.ICMSOriginNational,
		ICMSSituation:   pkgfiscal.ICMSSimplifiedNoCredit,
		PISSituation:    pkgfiscal.PISOperationNotTaxed,
		COFINSSituation: pkgfiscal.COFINSOperationNotTaxed,
	}
	standardTaxes = TaxClassification{
		ICMSOrigin:      pkgfiscal.ICMSOriginNational,
		ICMSSituation:   pkgfiscal.ICMSStandardNotTaxed,
		PISSituation:    pkgfiscal.PISOperationNotTaxed,
		COFINSSituation: pkgfiscal.COFINSOperationNotTaxed,
	}
)

// ResolveTaxClassification resuelve los códigos de situación solo a partir del regime.
// Un regime desconocido recibe los códigos del Simples Nacional y known=false.
func ResolveTaxClassification(regime pkgfiscal.TaxRegime) (tc TaxClassification, known bool) {
	switch regime {
	case pkgfiscal.RegimeSimplified, pkgfiscal.RegimeMicroEntrepreneur:
		return simplifiedTaxes, true
	case pkgfiscal.RegimeStandard:
		return standardTaxes, true
	default:
		return simplifiedTaxes, false
	}
}
