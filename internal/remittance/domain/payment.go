package remittance

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInstruction is one approved payment to a beneficiary.
type PaymentInstruction struct {
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	Document        string          `json:"document,omitempty"`
	Key             string          `json:"key"`

	// Bank routing fields are carried for the boleto/TED families; the PIX
	// records zero them out.
	BankCode     string `json:"bank_code,omitempty"`
	Branch       string `json:"branch,omitempty"`
	BranchDigit  string `json:"branch_digit,omitempty"`
	Account      string `json:"account,omitempty"`
	AccountDigit string `json:"account_digit,omitempty"`
}

// Method returns the record family the payment belongs to.
func (p PaymentInstruction) Method() PaymentMethod { return MethodOf(p.Key) }

// Address is the originator mailing address.
type Address struct {
	Street     string `yaml:"street" json:"street"`
	Number     string `yaml:"number" json:"number"`
	Complement string `yaml:"complement" json:"complement"`
	City       string `yaml:"city" json:"city"`
	PostalCode string `yaml:"postal_code" json:"postal_code"`
	State      string `yaml:"state" json:"state"`
}

// OriginatorProfile identifies the paying company and its account at the bank.
type OriginatorProfile struct {
	Name             string  `yaml:"name" json:"name"`
	TaxID            string  `yaml:"tax_id" json:"tax_id"`
	BankCode         string  `yaml:"bank_code" json:"bank_code"`
	BankName         string  `yaml:"bank_name" json:"bank_name"`
	Agreement        string  `yaml:"agreement" json:"agreement"`
	Branch           string  `yaml:"branch" json:"branch"`
	BranchDigit      string  `yaml:"branch_digit" json:"branch_digit"`
	Account          string  `yaml:"account" json:"account"`
	AccountDigit     string  `yaml:"account_digit" json:"account_digit"`
	Address          Address `yaml:"address" json:"address"`
	BeneficiaryState string  `yaml:"beneficiary_state" json:"beneficiary_state"`
}

// DefaultBeneficiaryState is written to Segment B when the profile leaves it empty.
const DefaultBeneficiaryState = "SC"

func (o OriginatorProfile) beneficiaryState() string {
	if strings.TrimSpace(o.BeneficiaryState) == "" {
		return DefaultBeneficiaryState
	}
	return o.BeneficiaryState
}

// inscriptionType returns "1" for a CPF and "2" for a CNPJ.
func inscriptionType(document string) string {
	if len(Digits(document)) <= 11 {
		return "1"
	}
	return "2"
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02012006",
	"2006/01/02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses the date notations found in payment queues.
func ParseDate(raw string) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseAmount parses plain ("1234.56"), grouped ("1,234.56") and Brazilian
// ("R$ 1.234,56") notations. When both separators appear the last one is the
// decimal one. A lone comma is decimal; dots alone in groups of three
// ("1.234", "12.345.678") are thousands separators.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "R$")
	value = strings.ReplaceAll(value, " ", "")
	if value == "" {
		return decimal.Zero, false
	}
	comma, dot := strings.LastIndex(value, ","), strings.LastIndex(value, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	case comma >= 0 && dot >= 0:
		value = strings.ReplaceAll(value, ",", "")
	case comma >= 0 && thousandsGrouped(value, ','):
		value = strings.ReplaceAll(value, ",", "")
	case comma >= 0:
		value = strings.Replace(value, ",", ".", 1)
	case dot >= 0 && thousandsGrouped(value, '.'):
		value = strings.ReplaceAll(value, ".", "")
	}
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// thousandsGrouped reports whether value is digits grouped by sep in threes,
// with a leading group of one to three digits. A lone comma never groups.
func thousandsGrouped(value string, sep byte) bool {
	value = strings.TrimPrefix(value, "-")
	groups := strings.Split(value, string(sep))
	if len(groups) < 2 || (sep == ',' && len(groups) == 2) {
		return false
	}
	head := groups[0]
	if len(head) == 0 || len(head) > 3 || head[0] == '0' || !allDigits(head) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

func allDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return value != ""
}
