package valueobject

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	AOA Currency = "AOA" // Angolan Kwanza (default)
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	ZAR Currency = "ZAR" // South African Rand
	CNY Currency = "CNY" // Chinese Yuan
	GBP Currency = "GBP" // British Pound
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = AOA

// CurrencyInfo is static reference data for a supported currency.
// ExchangeRate is the number of AOA one unit buys. Issued documents keep
// their own currency; SAF-T exports use the rate to report them in AOA.
type CurrencyInfo struct {
	Code          Currency        `json:"code"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	DecimalPlaces int32           `json:"decimal_places"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate"`
}

var currencies = map[Currency]CurrencyInfo{
	AOA: {Code: AOA, Name: "Kwanza", Symbol: "Kz", DecimalPlaces: 2, ExchangeRate: decimal.NewFromInt(1)},
	USD: {Code: USD, Name: "US Dollar", Symbol: "$", DecimalPlaces: 2, ExchangeRate: decimal.RequireFromString("912.50")},
	EUR: {Code: EUR, Name: "Euro", Symbol: "€", DecimalPlaces: 2, ExchangeRate: decimal.RequireFromString("1015.30")},
	ZAR: {Code: ZAR, Name: "Rand", Symbol: "R", DecimalPlaces: 2, ExchangeRate: decimal.RequireFromString("50.10")},
	CNY: {Code: CNY, Name: "Yuan Renminbi", Symbol: "¥", DecimalPlaces: 2, ExchangeRate: decimal.RequireFromString("126.40")},
	GBP: {Code: GBP, Name: "Pound Sterling", Symbol: "£", DecimalPlaces: 2, ExchangeRate: decimal.RequireFromString("1190.80")},
}

// LookupCurrency returns the reference data for code
func LookupCurrency(code Currency) (CurrencyInfo, bool) {
	info, ok := currencies[code]
	return info, ok
}

// Currencies returns all supported currencies, the default first
func Currencies() []CurrencyInfo {
	out := make([]CurrencyInfo, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code == DefaultCurrency || out[j].Code == DefaultCurrency {
			return out[i].Code == DefaultCurrency
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// IsValid reports whether the currency is supported
func (c Currency) IsValid() bool {
	_, ok := currencies[c]
	return ok
}
