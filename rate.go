package updater

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ExchangeRate units of Target per one unit of Source
type ExchangeRate struct {
	Source Currency        `json:"sourceCurrency"`
	Target Currency        `json:"targetCurrency"`
	Value  decimal.Decimal `json:"value"`
}

// NewExchangeRate constructs an ExchangeRate
func NewExchangeRate(source, target Currency, value decimal.Decimal) ExchangeRate {
	return ExchangeRate{Source: source, Target: target, Value: value}
}

func (r ExchangeRate) String() string {
	return fmt.Sprintf("%v/%v=%v", r.Source, r.Target, r.Value)
}

// Quote one parsed feed record: Rate units of the home currency buy Amount units of Code.
type Quote struct {
	Code   string
	Amount int64
	Rate   decimal.Decimal
}

// Value is the rate for a single unit of the quoted currency.
// Callers must not ask for the value of a quote with a zero amount.
func (q Quote) Value() decimal.Decimal {
	return q.Rate.Div(decimal.NewFromInt(q.Amount))
}
