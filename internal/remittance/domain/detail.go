package remittance

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	nameWidth           = 30
	segmentAKeyWidth    = 20
	segmentBKeyWidth    = 99
	documentWidth       = 14
	documentPlaceholder = "00000000000"
	amountWidth         = 15
	batchTotalWidth     = 18
)

var (
	// maxPaymentCents fits the Segment A amount field.
	maxPaymentCents = decimal.New(1, amountWidth).Sub(decimal.NewFromInt(1))
	// maxBatchCents fits the batch trailer total.
	maxBatchCents = int64(999_999_999_999_999_999)
)

// Detail is a payment whose fields have been validated and resolved to the
// values that go into Segments A and B.
type Detail struct {
	Row             int
	BeneficiaryName string
	Key             string
	KeyType         KeyType
	Document        string
	DueDate         time.Time
	Cents           int64
}

// ResolveDetail validates each field of p. Invalid fields fall back to a
// neutral value and are reported instead of rejecting the payment.
func ResolveDetail(row int, p PaymentInstruction, fallbackDate time.Time) (Detail, Diagnostics) {
	var diags Diagnostics
	report := func(field, reason, fallback string) {
		diags = append(diags, Diagnostic{Row: row, Field: field, Reason: reason, Fallback: fallback})
	}

	d := Detail{Row: row}

	d.BeneficiaryName = strings.TrimSpace(p.BeneficiaryName)
	switch {
	case d.BeneficiaryName == "":
		report(FieldBeneficiaryName, "missing beneficiary name", "")
	case utf8.RuneCountInString(d.BeneficiaryName) > nameWidth:
		report(FieldBeneficiaryName, "truncated to 30 characters", Text(d.BeneficiaryName, nameWidth))
	}

	switch cents := p.Amount.Mul(hundred).RoundBank(0); {
	case p.Amount.IsNegative():
		report(FieldAmount, "negative amount", "0")
	case cents.GreaterThan(maxPaymentCents):
		report(FieldAmount, "amount exceeds 15 digits", "0")
	default:
		d.Cents = cents.IntPart()
		if !p.Amount.Equal(p.Amount.Round(2)) {
			report(FieldAmount, "rounded to cents", Amount(d.Cents, amountWidth))
		}
	}

	d.DueDate = p.DueDate
	if d.DueDate.IsZero() {
		d.DueDate = fallbackDate
		report(FieldDueDate, "missing or unparseable due date", Date(fallbackDate))
	}

	d.Document = Digits(p.Document)
	switch {
	case d.Document == "":
		d.Document = documentPlaceholder
		report(FieldDocument, "missing document", documentPlaceholder)
	case len(d.Document) > documentWidth:
		report(FieldDocument, "document longer than 14 digits", Numeric(d.Document, documentWidth))
	}

	d.Key = strings.TrimSpace(p.Key)
	switch {
	case d.Key == "":
		report(FieldKey, "missing payment key", "")
	case utf8.RuneCountInString(d.Key) > segmentBKeyWidth:
		report(FieldKey, "truncated to 99 characters", "")
	}
	d.KeyType = ClassifyKey(d.Key)

	return d, diags
}
