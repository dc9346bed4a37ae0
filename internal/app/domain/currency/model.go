// Package currency converts and formats amounts across supported currencies.
package currency

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Code is an ISO 4217 currency code.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	BRL Code = "BRL"
	MXN Code = "MXN"
	ARS Code = "ARS"
	COP Code = "COP"
)

// Currency describes a supported currency.
type Currency struct {
	Code   Code   `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Supported lists the currencies the application converts between.
var Supported = []Currency{
	{Code: USD, Symbol: "$", Name: "US Dollar"},
	{Code: EUR, Symbol: "€", Name: "Euro"},
	{Code: BRL, Symbol: "R$", Name: "Brazilian Real"},
	{Code: MXN, Symbol: "MX$", Name: "Mexican Peso"},
	{Code: ARS, Symbol: "AR$", Name: "Argentine Peso"},
	{Code: COP, Symbol: "COL$", Name: "Colombian Peso"},
}

// Lookup returns the currency for code.
func Lookup(code Code) (Currency, bool) {
	for _, c := range Supported {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// Rates maps currency codes to units per US dollar.
type Rates map[Code]float64

// Snapshot is a set of rates fetched at one time.
type Snapshot struct {
	Rates     Rates     `json:"rates"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Convert returns amount expressed in to, using rates relative to USD.
func Convert(amount float64, from, to Code, rates Rates) (float64, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := rates[from]
	if !ok || fromRate == 0 {
		return 0, fmt.Errorf("unsupported currency %q", from)
	}
	toRate, ok := rates[to]
	if !ok {
		return 0, fmt.Errorf("unsupported currency %q", to)
	}
	return (amount / fromRate) * toRate, nil
}

// Format renders amount with the currency symbol, two decimals and thousands
// separators. Unknown codes are prefixed with the code itself.
func Format(amount float64, code Code) string {
	symbol := string(code) + " "
	if c, ok := Lookup(code); ok {
		symbol = c.Symbol
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, Group(cents/100), cents%100)
}

// Group renders n with comma thousands separators.
func Group(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
