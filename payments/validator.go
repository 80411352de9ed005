package payments

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type localMethod struct {
	name       string
	currencies []string
}

// baseMethods is offered everywhere; localMethods adds one rail per country,
// usable only in the listed currencies.
var (
	baseMethods  = []string{"card"}
	localMethods = map[string][]localMethod{
		"NL": {{name: "ideal", currencies: []string{"eur"}}},
		"BE": {{name: "bancontact", currencies: []string{"eur"}}},
		"DE": {{name: "giropay", currencies: []string{"eur"}}},
		"AT": {{name: "eps", currencies: []string{"eur"}}},
		"PL": {{name: "p24", currencies: []string{"eur", "pln"}}},
	}
)

// AmountValidator enforces the tip floor and ceiling in minor units.
type AmountValidator struct {
	minMinor        int64
	maxMinor        int64
	defaultCurrency string
}

func NewAmountValidator(minMinor, maxMinor int64, defaultCurrency string) *AmountValidator {
	return &AmountValidator{
		minMinor:        minMinor,
		maxMinor:        maxMinor,
		defaultCurrency: strings.ToLower(defaultCurrency),
	}
}

// Validate converts a major-unit amount to minor units and checks it against
// the inclusive [min, max] range. The currency is checked with Currency.
func (v *AmountValidator) Validate(amount decimal.Decimal, currency string) (int64, error) {
	if _, err := v.Currency(currency); err != nil {
		return 0, err
	}

	minor := amount.Mul(hundred).Round(0)
	if minor.LessThan(decimal.NewFromInt(v.minMinor)) || minor.GreaterThan(decimal.NewFromInt(v.maxMinor)) {
		return 0, &ValidationError{
			Field: "amount",
			Reason: "must be between " + FromMinorUnits(v.minMinor).StringFixed(2) +
				" and " + FromMinorUnits(v.maxMinor).StringFixed(2),
		}
	}
	return minor.IntPart(), nil
}

// Currency normalises an ISO 4217 code to lower case, substituting the
// default when empty.
func (v *AmountValidator) Currency(currency string) (string, error) {
	if currency == "" {
		return v.defaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", &ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	for _, r := range currency {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return "", &ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
		}
	}
	return strings.ToLower(currency), nil
}

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// PaymentMethodTypes returns the payment rails offered for a tipper's country
// in the given currency. Unknown or empty countries, and local rails that do
// not settle in the currency, fall back to the base set.
func PaymentMethodTypes(country, currency string) []string {
	methods := append([]string(nil), baseMethods...)
	currency = strings.ToLower(strings.TrimSpace(currency))
	for _, m := range localMethods[strings.ToUpper(strings.TrimSpace(country))] {
		for _, c := range m.currencies {
			if c == currency {
				methods = append(methods, m.name)
				break
			}
		}
	}
	return methods
}
