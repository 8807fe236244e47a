package fiscal

import (
	"github.com/google/uuid"
	"github.com/kwanza/fiscal/internal/domain/shared"
	"github.com/kwanza/fiscal/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItemInput is a raw line as supplied by the caller
type LineItemInput struct {
	ProductID          *uuid.UUID
	Description        string
	Quantity           decimal.Decimal
	UnitPrice          decimal.Decimal
	DiscountPercentage decimal.Decimal
	TaxRate            decimal.Decimal
	TaxExemptionCode   string
	TaxExemptionReason string
}

// DocumentLine is a computed line owned by a fiscal document.
// Monetary figures are rounded to valueobject.MoneyPlaces.
type DocumentLine struct {
	ID                 uuid.UUID       `json:"id"`
	LineNumber         int             `json:"line_number"`
	ProductID          *uuid.UUID      `json:"product_id,omitempty"`
	Description        string          `json:"description"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxExemptionCode   string          `json:"tax_exemption_code,omitempty"`
	TaxExemptionReason string          `json:"tax_exemption_reason,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"` // Quantity * UnitPrice
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	NetAmount          decimal.Decimal `json:"net_amount"` // Subtotal - DiscountAmount
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"` // NetAmount + TaxAmount
}

// Input returns the raw input this line was computed from
func (l DocumentLine) Input() LineItemInput {
	return LineItemInput{
		ProductID:          l.ProductID,
		Description:        l.Description,
		Quantity:           l.Quantity,
		UnitPrice:          l.UnitPrice,
		DiscountPercentage: l.DiscountPercentage,
		TaxRate:            l.TaxRate,
		TaxExemptionCode:   l.TaxExemptionCode,
		TaxExemptionReason: l.TaxExemptionReason,
	}
}

// DocumentTotals are the derived totals of a document.
// Invariant: TotalAmount = Subtotal + TaxAmount, where Subtotal is net of discounts.
type DocumentTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// ZeroTotals returns totals with every figure set to zero
func ZeroTotals() DocumentTotals {
	return DocumentTotals{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		TaxAmount:      decimal.Zero,
		TotalAmount:    decimal.Zero,
	}
}

// CalculateLines computes per-line breakdowns and document totals.
// Each line figure is rounded half away from zero before summing, so the
// document totals always equal the sum of the stored line figures.
func CalculateLines(items []LineItemInput) (DocumentTotals, []DocumentLine, error) {
	if len(items) == 0 {
		return DocumentTotals{}, nil, shared.NewValidationError("at least one line item is required")
	}

	totals := ZeroTotals()
	lines := make([]DocumentLine, 0, len(items))
	for i, item := range items {
		line, err := calculateLine(i+1, item)
		if err != nil {
			return DocumentTotals{}, nil, err
		}
		totals.Subtotal = totals.Subtotal.Add(line.NetAmount)
		totals.DiscountAmount = totals.DiscountAmount.Add(line.DiscountAmount)
		totals.TaxAmount = totals.TaxAmount.Add(line.TaxAmount)
		lines = append(lines, line)
	}
	totals.TotalAmount = totals.Subtotal.Add(totals.TaxAmount)
	return totals, lines, nil
}

func calculateLine(n int, item LineItemInput) (DocumentLine, error) {
	if err := validateLine(n, &item); err != nil {
		return DocumentLine{}, err
	}

	places := valueobject.MoneyPlaces
	subtotal := item.Quantity.Mul(item.UnitPrice).Round(places)
	discount := subtotal.Mul(item.DiscountPercentage).Div(hundred).Round(places)
	net := subtotal.Sub(discount)
	tax := net.Mul(item.TaxRate).Div(hundred).Round(places)

	return DocumentLine{
		ID:                 uuid.New(),
		LineNumber:         n,
		ProductID:          item.ProductID,
		Description:        item.Description,
		Quantity:           item.Quantity,
		UnitPrice:          item.UnitPrice,
		DiscountPercentage: item.DiscountPercentage,
		TaxRate:            item.TaxRate,
		TaxExemptionCode:   item.TaxExemptionCode,
		TaxExemptionReason: item.TaxExemptionReason,
		Subtotal:           subtotal,
		DiscountAmount:     discount,
		NetAmount:          net,
		TaxAmount:          tax,
		TotalAmount:        net.Add(tax),
	}, nil
}

// validateLine checks ranges and fills the exemption reason from the AGT table
func validateLine(n int, item *LineItemInput) error {
	item.Description = NormalizeText(item.Description)
	if item.Description == "" {
		return shared.NewValidationError("line %d: description is required", n)
	}
	if !item.Quantity.IsPositive() {
		return shared.NewValidationError("line %d: quantity must be positive", n)
	}
	if item.UnitPrice.IsNegative() {
		return shared.NewValidationError("line %d: unit price cannot be negative", n)
	}
	if item.DiscountPercentage.IsNegative() || item.DiscountPercentage.GreaterThan(hundred) {
		return shared.NewValidationError("line %d: discount percentage must be between 0 and 100", n)
	}
	if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(hundred) {
		return shared.NewValidationError("line %d: tax rate must be between 0 and 100", n)
	}

	if item.TaxRate.IsZero() {
		if item.TaxExemptionCode == "" {
			return shared.NewValidationError("line %d: a tax exemption code is required when the tax rate is 0", n)
		}
		reason, ok := ExemptionReason(item.TaxExemptionCode)
		if !ok {
			return shared.NewValidationError("line %d: unknown tax exemption code %q", n, item.TaxExemptionCode)
		}
		item.TaxExemptionReason = NormalizeText(item.TaxExemptionReason)
		if item.TaxExemptionReason == "" {
			item.TaxExemptionReason = reason
		}
		return nil
	}

	if item.TaxExemptionCode != "" {
		return shared.NewValidationError("line %d: tax exemption code given for a taxed line", n)
	}
	item.TaxExemptionReason = ""
	return nil
}
