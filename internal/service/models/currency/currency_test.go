package currency

import (
	"errors"
	"testing"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in      string
		want    Currency
		wantErr bool
	}{
		{in: "RUB", want: CurrencyRUB},
		{in: " usd ", want: CurrencyUSD},
		{in: "Eur", want: CurrencyEUR},
		{in: "JPY", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseCurrency(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCurrency) {
				t.Fatalf("ParseCurrency(%q) error = %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseCurrency(%q) = %q, %v", tt.in, got, err)
		}
	}
}
