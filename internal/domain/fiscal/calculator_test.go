package fiscal

import (
	"testing"

	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func taxedLine(qty, price, discount, rate string) LineItemInput {
	return LineItemInput{
		Description:        "Consultoria",
		Quantity:           d(qty),
		UnitPrice:          d(price),
		DiscountPercentage: d(discount),
		TaxRate:            d(rate),
	}
}

func TestCalculateLines_SingleLineAtStandardRate(t *testing.T) {
	totals, lines, err := CalculateLines([]LineItemInput{taxedLine("1", "45000", "0", "14")})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, "45000.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "6300.00", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "51300.00", totals.TotalAmount.StringFixed(2))
	assert.True(t, totals.DiscountAmount.IsZero())

	line := lines[0]
	assert.Equal(t, 1, line.LineNumber)
	assert.Equal(t, "45000.00", line.NetAmount.StringFixed(2))
	assert.Equal(t, "51300.00", line.TotalAmount.StringFixed(2))
}

func TestCalculateLines_DiscountAndMixedRates(t *testing.T) {
	items := []LineItemInput{
		taxedLine("3", "1250.50", "10", "14"),
		taxedLine("2.5", "999.99", "0", "7"),
		{
			Description:      "Livros escolares",
			Quantity:         d("4"),
			UnitPrice:        d("3500"),
			TaxRate:          decimal.Zero,
			TaxExemptionCode: "M10",
		},
	}

	totals, lines, err := CalculateLines(items)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	// 3 * 1250.50 = 3751.50; 10% = 375.15; net 3376.35; tax 472.689 -> 472.69
	assert.Equal(t, "3751.50", lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "375.15", lines[0].DiscountAmount.StringFixed(2))
	assert.Equal(t, "3376.35", lines[0].NetAmount.StringFixed(2))
	assert.Equal(t, "472.69", lines[0].TaxAmount.StringFixed(2))

	// 2.5 * 999.99 = 2499.975 -> 2499.98; tax 174.9986 -> 175.00
	assert.Equal(t, "2499.98", lines[1].NetAmount.StringFixed(2))
	assert.Equal(t, "175.00", lines[1].TaxAmount.StringFixed(2))

	assert.Equal(t, "14000.00", lines[2].NetAmount.StringFixed(2))
	assert.True(t, lines[2].TaxAmount.IsZero())
	reason, _ := ExemptionReason("M10")
	assert.Equal(t, reason, lines[2].TaxExemptionReason)

	assert.True(t, totals.TotalAmount.Equal(totals.Subtotal.Add(totals.TaxAmount)))
	assert.Equal(t, "375.15", totals.DiscountAmount.StringFixed(2))
}

func TestCalculateLines_SumOfLineTotalsEqualsDocumentTotal(t *testing.T) {
	items := []LineItemInput{
		taxedLine("0.333", "10.01", "3.5", "14"),
		taxedLine("7", "0.07", "0", "5"),
		taxedLine("1.5", "19999.995", "12.25", "7"),
		taxedLine("11", "1.11", "100", "14"),
	}
	totals, lines, err := CalculateLines(items)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, l := range lines {
		assert.True(t, l.TotalAmount.Equal(l.NetAmount.Add(l.TaxAmount)))
		sum = sum.Add(l.TotalAmount)
	}
	assert.True(t, sum.Equal(totals.TotalAmount), "sum %s != total %s", sum, totals.TotalAmount)
	assert.True(t, totals.TotalAmount.Equal(totals.Subtotal.Add(totals.TaxAmount)))
}

func TestCalculateLines_Validation(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItemInput
		msg   string
	}{
		{"empty list", nil, "at least one line item"},
		{"zero quantity", []LineItemInput{taxedLine("0", "10", "0", "14")}, "quantity must be positive"},
		{"negative price", []LineItemInput{taxedLine("1", "-1", "0", "14")}, "unit price cannot be negative"},
		{"discount above 100", []LineItemInput{taxedLine("1", "10", "100.01", "14")}, "discount percentage"},
		{"negative tax", []LineItemInput{taxedLine("1", "10", "0", "-14")}, "tax rate"},
		{"exempt without code", []LineItemInput{taxedLine("1", "10", "0", "0")}, "exemption code is required"},
		{"unknown exemption code", []LineItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("1"), TaxExemptionCode: "M99"}}, "unknown tax exemption code"},
		{"code on taxed line", []LineItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("1"), TaxRate: d("14"), TaxExemptionCode: "M10"}}, "taxed line"},
		{"blank description", []LineItemInput{{Description: " \t ", Quantity: d("1"), UnitPrice: d("1"), TaxRate: d("14")}}, "description is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CalculateLines(tt.items)
			require.Error(t, err)
			assert.Equal(t, shared.CodeValidation, shared.CodeOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNormalizeText(t *testing.T) {
	// "e" + combining acute composes to a single rune under NFC
	assert.Equal(t, "Serviço de café", NormalizeText("  Serviço  de\tcafé\n"))
	assert.Equal(t, "ab", NormalizeText("a\x00b"))
	assert.Equal(t, "", NormalizeText("   "))
}

func TestTaxCodeFor(t *testing.T) {
	assert.Equal(t, "NOR", TaxCodeFor(d("14")))
	assert.Equal(t, "INT", TaxCodeFor(d("7.00")))
	assert.Equal(t, "RED", TaxCodeFor(d("5")))
	assert.Equal(t, "ISE", TaxCodeFor(decimal.Zero))
	assert.Equal(t, "OUT", TaxCodeFor(d("2")))
	assert.Len(t, TaxRates(), 4)

	exemptions := TaxExemptions()
	require.NotEmpty(t, exemptions)
	assert.Equal(t, "M00", exemptions[0].Code)
}
