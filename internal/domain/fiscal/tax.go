package fiscal

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TaxTypeIVA is the SAF-T (AO) TaxType of every line
const TaxTypeIVA = "IVA"

// TaxRate is a row of the AGT IVA rate table
type TaxRate struct {
	Code        string          `json:"code"` // SAF-T TaxCode
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description"`
}

var taxRates = []TaxRate{
	{Code: "NOR", Percentage: decimal.NewFromInt(14), Description: "Taxa normal"},
	{Code: "INT", Percentage: decimal.NewFromInt(7), Description: "Taxa intermédia"},
	{Code: "RED", Percentage: decimal.NewFromInt(5), Description: "Taxa reduzida"},
	{Code: "ISE", Percentage: decimal.Zero, Description: "Isento"},
}

// TaxRates returns the IVA rate table
func TaxRates() []TaxRate {
	out := make([]TaxRate, len(taxRates))
	copy(out, taxRates)
	return out
}

// TaxCodeFor returns the SAF-T tax code for a percentage. Percentages outside
// the standard table are reported as "OUT".
func TaxCodeFor(rate decimal.Decimal) string {
	for _, r := range taxRates {
		if r.Percentage.Equal(rate) {
			return r.Code
		}
	}
	return "OUT"
}

// TaxExemption is an AGT exemption motive (M-code)
type TaxExemption struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

var taxExemptions = map[string]string{
	"M00": "Regime transitório",
	"M02": "Transmissão de bens e serviço não sujeita",
	"M04": "IVA - Regime de não sujeição",
	"M10": "Isento nos termos da alínea a) do nº1 do artigo 12.º do CIVA",
	"M11": "Isento nos termos da alínea b) do nº1 do artigo 12.º do CIVA",
	"M12": "Isento nos termos da alínea c) do nº1 do artigo 12.º do CIVA",
	"M13": "Isento nos termos da alínea d) do nº1 do artigo 12.º do CIVA",
	"M14": "Isento nos termos da alínea e) do nº1 do artigo 12.º do CIVA",
	"M15": "Isento nos termos da alínea f) do nº1 do artigo 12.º do CIVA",
	"M17": "Isento nos termos da alínea h) do nº1 do artigo 12.º do CIVA",
	"M18": "Isento nos termos da alínea i) do nº1 do artigo 12.º do CIVA",
	"M19": "Isento nos termos da alínea j) do nº1 do artigo 12.º do CIVA",
	"M20": "Isento nos termos da alínea k) do nº1 do artigo 12.º do CIVA",
	"M30": "Isento nos termos da alínea a) do artigo 15.º do CIVA",
	"M31": "Isento nos termos da alínea b) do artigo 15.º do CIVA",
	"M32": "Isento nos termos da alínea c) do artigo 15.º do CIVA",
	"M33": "Isento nos termos da alínea d) do artigo 15.º do CIVA",
	"M34": "Isento nos termos da alínea e) do artigo 15.º do CIVA",
	"M35": "Isento nos termos da alínea f) do artigo 15.º do CIVA",
	"M36": "Isento nos termos da alínea g) do artigo 15.º do CIVA",
	"M37": "Isento nos termos da alínea h) do artigo 15.º do CIVA",
	"M38": "Isento nos termos da alínea i) do artigo 15.º do CIVA",
}

// ExemptionReason returns the legal reason for an exemption code
func ExemptionReason(code string) (string, bool) {
	r, ok := taxExemptions[code]
	return r, ok
}

// TaxExemptions returns the exemption table ordered by code
func TaxExemptions() []TaxExemption {
	out := make([]TaxExemption, 0, len(taxExemptions))
	for code, reason := range taxExemptions {
		out = append(out, TaxExemption{Code: code, Reason: reason})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
