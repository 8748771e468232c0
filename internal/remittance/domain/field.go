package remittance

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Align selects the justification of a text field.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

const (
	dateLayout = "02012006"
	timeLayout = "150405"
)

var hundred = decimal.NewFromInt(100)

// Text formats value as a left-justified, blank-padded field of exactly width characters.
func Text(value string, width int) string {
	return TextPad(value, width, ' ', AlignLeft)
}

// TextPad normalizes value (accents removed, upper case, printable ASCII only)
// and truncates or pads it to exactly width characters.
func TextPad(value string, width int, pad rune, align Align) string {
	if width <= 0 {
		return ""
	}
	chars := []rune(normalizeText(value))
	if len(chars) >= width {
		return string(chars[:width])
	}
	fill := strings.Repeat(string(pad), width-len(chars))
	if align == AlignRight {
		return fill + string(chars)
	}
	return string(chars) + fill
}

// Raw truncates or blank-pads value to width without changing its case or
// accents. Control and non-ASCII characters become blanks so the record keeps
// its width. Used for PIX keys, which must reach the bank as typed.
func Raw(value string, width int) string {
	if width <= 0 {
		return ""
	}
	chars := []rune(strings.Map(printable, value))
	if len(chars) >= width {
		return string(chars[:width])
	}
	return string(chars) + Blank(width-len(chars))
}

// Numeric keeps only the digits of value and zero-fills them on the left to width.
// Longer values keep their rightmost width digits.
func Numeric(value string, width int) string {
	if width <= 0 {
		return ""
	}
	digits := Digits(value)
	if digits == "" {
		digits = "0"
	}
	if len(digits) > width {
		return digits[len(digits)-width:]
	}
	return strings.Repeat("0", width-len(digits)) + digits
}

// Blank returns width spaces.
func Blank(width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat(" ", width)
}

// Zeros returns width zeros.
func Zeros(width int) string {
	if width <= 0 {
		return ""
	}
	return strings.Repeat("0", width)
}

// Digits strips every non-digit character.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Cents converts a monetary amount to minor units, rounding half to even.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).RoundBank(0).IntPart()
}

// Amount formats an amount in cents as a zero-filled numeric field.
func Amount(cents int64, width int) string {
	if cents < 0 {
		cents = 0
	}
	return Numeric(strconv.FormatInt(cents, 10), width)
}

// Date formats t as DDMMYYYY.
func Date(t time.Time) string {
	return t.Format(dateLayout)
}

// TimeOfDay formats t as HHMMSS.
func TimeOfDay(t time.Time) string {
	return t.Format(timeLayout)
}

func normalizeText(value string) string {
	if value == "" {
		return ""
	}
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, value)
	if err != nil {
		stripped = value
	}
	stripped = strings.ToUpper(stripped)
	return strings.Map(printable, stripped)
}

func printable(r rune) rune {
	if r < 0x20 || r > 0x7e {
		return ' '
	}
	return r
}
