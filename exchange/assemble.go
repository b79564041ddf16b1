package exchange

import (
	"strings"

	"go-exchange-rate-updater"
)

// Assemble picks the requested currencies out of a listing and expresses each per one unit against target.
// Output follows the normalized order of currencies; codes the listing does not carry are returned as missing.
// When the listing repeats a code the first record wins.
func Assemble(quotes []updater.Quote, currencies []updater.Currency, target updater.Currency) (rates []updater.ExchangeRate, missing []updater.Currency) {
	byCode := make(map[string]updater.Quote, len(quotes))
	for _, q := range quotes {
		if q.Amount <= 0 {
			continue
		}
		code := strings.ToUpper(q.Code)
		if _, seen := byCode[code]; !seen {
			byCode[code] = q
		}
	}

	for _, c := range updater.NormalizeCurrencies(currencies) {
		q, ok := byCode[c.Code()]
		if !ok {
			missing = append(missing, c)
			continue
		}
		rates = append(rates, updater.NewExchangeRate(c, target, q.Value()))
	}
	return rates, missing
}
