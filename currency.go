package updater

import (
	"fmt"
	"sort"
	"strings"
)

// Currency a currency code, e.g. "USD".
// Codes are upper-cased on construction so two currencies compare equal regardless of the
// case they were written in. The zero value is not a valid currency.
type Currency struct {
	code string
}

// NewCurrency constructs a valid Currency
func NewCurrency(code string) (Currency, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Currency{}, fmt.Errorf("%w: currency code cannot be empty", ErrInvalidArgument)
	}
	return Currency{code: strings.ToUpper(code)}, nil
}

// MustCurrency is NewCurrency for codes known to be valid at compile time.
func MustCurrency(code string) Currency {
	c, err := NewCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Code returns the normalized currency code
func (c Currency) Code() string {
	return c.code
}

func (c Currency) String() string {
	return c.code
}

// IsZero reports whether c was never constructed
func (c Currency) IsZero() bool {
	return c.code == ""
}

// MarshalText encodes the currency as its code
func (c Currency) MarshalText() ([]byte, error) {
	return []byte(c.code), nil
}

// UnmarshalText decodes and validates a currency code
func (c *Currency) UnmarshalText(text []byte) error {
	parsed, err := NewCurrency(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCurrencies parses a comma separated list of codes, e.g. "USD,eur, GBP".
// Empty elements are ignored; a list without any code is an error.
func ParseCurrencies(csv string) ([]Currency, error) {
	var out []Currency
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := NewCurrency(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no currency codes in %q", ErrInvalidArgument, csv)
	}
	return out, nil
}

// NormalizeCurrencies dedupes and sorts currencies by code
func NormalizeCurrencies(currencies []Currency) []Currency {
	seen := make(map[Currency]struct{}, len(currencies))
	out := make([]Currency, 0, len(currencies))
	for _, c := range currencies {
		if c.IsZero() {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}
