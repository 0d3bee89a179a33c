package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Currency describes a supported currency and which providers can charge it,
// ordered by preference. Paystack leads for its home currencies, Stripe for
// card-centric Western ones, Flutterwave as the broad African fallback.
type Currency struct {
	Code      string
	Symbol    string
	Name      string
	Providers []ProviderID
}

var currencies = []Currency{
	{Code: "USD", Symbol: "$", Name: "US Dollar", Providers: []ProviderID{ProviderStripe, ProviderFlutterwave}},
	{Code: "GBP", Symbol: "£", Name: "British Pound", Providers: []ProviderID{ProviderStripe}},
	{Code: "EUR", Symbol: "€", Name: "Euro", Providers: []ProviderID{ProviderStripe}},
	{Code: "NGN", Symbol: "₦", Name: "Nigerian Naira", Providers: []ProviderID{ProviderPaystack, ProviderFlutterwave}},
	{Code: "GHS", Symbol: "GH₵", Name: "Ghanaian Cedi", Providers: []ProviderID{ProviderPaystack, ProviderFlutterwave}},
	{Code: "KES", Symbol: "KSh", Name: "Kenyan Shilling", Providers: []ProviderID{ProviderPaystack, ProviderFlutterwave}},
	{Code: "ZAR", Symbol: "R", Name: "South African Rand", Providers: []ProviderID{ProviderPaystack, ProviderFlutterwave}},
	{Code: "TZS", Symbol: "TSh", Name: "Tanzanian Shilling", Providers: []ProviderID{ProviderFlutterwave}},
	{Code: "UGX", Symbol: "USh", Name: "Ugandan Shilling", Providers: []ProviderID{ProviderFlutterwave}},
	{Code: "CAD", Symbol: "CA$", Name: "Canadian Dollar", Providers: []ProviderID{ProviderStripe}},
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar", Providers: []ProviderID{ProviderStripe}},
}

// localeToCurrency maps a browser locale to the currency a visitor most
// likely expects to pay in.
var localeToCurrency = map[string]string{
	"en-US": "USD", "en-CA": "CAD", "en-GB": "GBP", "en-AU": "AUD",
	"en-NG": "NGN", "en-GH": "GHS", "en-KE": "KES", "en-ZA": "ZAR",
	"en-TZ": "TZS", "en-UG": "UGX",
	"de-DE": "EUR", "fr-FR": "EUR", "es-ES": "EUR", "it-IT": "EUR",
	"nl-NL": "EUR", "pt-PT": "EUR", "pl-PL": "EUR",
}

// DefaultCurrency is the soft-fail fallback for unknown locales.
const DefaultCurrency = "USD"

// ErrUnsupportedCurrency marks a currency outside the supported set, or one
// the chosen provider refuses outright.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ResolveCurrency maps a locale signal ("en-GH") to a supported currency
// code. Unknown locales fall back to USD; this never fails.
func ResolveCurrency(locale string) string {
	if code, ok := localeToCurrency[strings.TrimSpace(locale)]; ok {
		return code
	}
	return DefaultCurrency
}

// CurrencyByCode looks up a supported currency.
func CurrencyByCode(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// ProvidersFor returns the providers that can charge the given currency,
// most preferred first. Every supported currency has at least one provider.
func ProvidersFor(code string) ([]ProviderID, error) {
	c, ok := CurrencyByCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, code)
	}
	providers := make([]ProviderID, len(c.Providers))
	copy(providers, c.Providers)
	return providers, nil
}

// SupportedCurrencyCodes lists every currency the store can charge.
func SupportedCurrencyCodes() []string {
	codes := make([]string, len(currencies))
	for i, c := range currencies {
		codes[i] = c.Code
	}
	return codes
}

// Currencies whose smallest unit is not subdivided in common usage; they
// render without decimals but with thousands separators.
var zeroDecimalCurrencies = map[string]bool{
	"KES": true, "TZS": true, "UGX": true, "NGN": true,
}

// FormatAmount renders an amount for display: "₦1,500" or "GH₵149.97".
// Unknown codes fall back to USD so display never breaks.
func FormatAmount(amount float64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, ok := CurrencyByCode(code)
	if !ok {
		c, _ = CurrencyByCode(DefaultCurrency)
	}
	if zeroDecimalCurrencies[code] {
		return c.Symbol + groupThousands(int64(math.Round(amount)))
	}
	return c.Symbol + strconv.FormatFloat(amount, 'f', 2, 64)
}

// groupThousands formats 1234567 as "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
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
