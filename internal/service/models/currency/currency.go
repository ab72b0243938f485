package currency

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Currency is an ISO 4217 code. All supported codes have two decimal places,
// which money.Cents assumes.
type Currency string

const (
	CurrencyRUB Currency = "RUB"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

var ErrInvalidCurrency = errors.New("invalid currency")

var supported = map[Currency]struct{}{
	CurrencyRUB: {},
	CurrencyUSD: {},
	CurrencyEUR: {},
}

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Value() (driver.Value, error) {
	return c.String(), nil
}

// ParseCurrency accepts a code in any case, surrounded by whitespace or not.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := supported[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}

	return c, nil
}
