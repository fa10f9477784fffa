package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// OrderSentinel pushes approvals without a parseable order key to the end of
// the sibling-chain sort.
const OrderSentinel = 9999

var (
	digitRunRe     = regexp.MustCompile(`\d+`)
	currencyJunkRe = regexp.MustCompile(`[^0-9.\-]`)
)

// Normalizer formats currency amounts for the configured locale
type Normalizer struct {
	printer *message.Printer
	symbol  string
}

// NewNormalizer creates a normalizer for the given BCP 47 locale and
// currency symbol. Unparseable locales fall back to Hebrew, matching the
// base's primary audience.
func NewNormalizer(locale, symbol string) *Normalizer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Hebrew
	}
	if symbol == "" {
		symbol = "₪"
	}
	return &Normalizer{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
	}
}

// Currency normalizes an amount of unknown shape into a locale-formatted
// currency string with zero decimal places. Nested lookup arrays are
// unwrapped, objects are coerced through their JSON text as a last resort,
// and anything that leaves no numeric residue yields "" rather than an error.
func (n *Normalizer) Currency(raw any) string {
	cleaned := currencyJunkRe.ReplaceAllString(currencyText(raw), "")
	if cleaned == "" {
		return ""
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return ""
	}

	formatted := n.printer.Sprintf("%v",
		number.Decimal(math.Round(amount), number.MaxFractionDigits(0)))
	return formatted + " " + n.symbol
}

// currencyText flattens a raw amount value to text
func currencyText(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		return currencyText(v[0])
	case map[string]any:
		text, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(text)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Percent normalizes a budget-utilization cell. Percent fields store the
// fraction (0.42 means 42%), but older rows hold the whole number or a
// pre-rendered "42%" string; values above 1 are taken as already scaled.
func (n *Normalizer) Percent(raw any) string {
	value, ok := Numeric(raw)
	if !ok {
		return ""
	}
	if value <= 1 {
		value *= 100
	}
	return n.printer.Sprintf("%v",
		number.Decimal(value, number.MaxFractionDigits(1))) + "%"
}

// OrderNumber extracts the first run of digits from an ordering field of
// unknown shape. Missing or digit-free values return OrderSentinel so they
// sort after every explicitly ordered record.
func OrderNumber(raw any) int {
	run := digitRunRe.FindString(Ingest(raw).DisplayString())
	if run == "" {
		return OrderSentinel
	}

	n, err := strconv.Atoi(run)
	if err != nil {
		// A digit run too long for int is schema garbage, not an order key.
		return OrderSentinel
	}
	return n
}

// Numeric attempts to read a value of unknown shape as a number, tolerating
// currency symbols and grouping characters around the digits.
func Numeric(raw any) (float64, bool) {
	cleaned := currencyJunkRe.ReplaceAllString(currencyText(raw), "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
