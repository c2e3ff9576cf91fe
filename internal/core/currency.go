package core

import "strings"

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"CAD": "C$",
	"AUD": "A$",
	"NZD": "NZ$",
	"CHF": "CHF",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
	"BRL": "R$",
	"MXN": "$",
	"ZAR": "R",
	"KRW": "₩",
}

// CurrencySymbol returns the display symbol for an ISO code, "$" when unknown.
func CurrencySymbol(code string) string {
	if s, ok := currencySymbols[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return DefaultCurrencySymbol
}
