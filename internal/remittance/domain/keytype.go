package remittance

import (
	"strings"
	"unicode/utf8"
)

// KeyType is the PIX initiation code written to Segment B.
type KeyType string

const (
	KeyTypePhone    KeyType = "01"
	KeyTypeEmail    KeyType = "02"
	KeyTypeDocument KeyType = "03"
	KeyTypeRandom   KeyType = "04"
)

// ClassifyKey derives the initiation code from a raw PIX key.
//
// The rules are applied in order: '@' means e-mail; more than 30 characters
// with a hyphen means a random (UUID shaped) key; exactly 11 or 14 digits means
// a tax document; anything else is treated as a phone number. An 11-digit
// mobile number cannot be told apart from a CPF and is classified as a document.
func ClassifyKey(raw string) KeyType {
	key := strings.TrimSpace(raw)
	if strings.Contains(key, "@") {
		return KeyTypeEmail
	}
	if utf8.RuneCountInString(key) > 30 && strings.Contains(key, "-") {
		return KeyTypeRandom
	}
	switch len(Digits(key)) {
	case 11, 14:
		return KeyTypeDocument
	}
	return KeyTypePhone
}

// String returns the two-digit code.
func (k KeyType) String() string { return string(k) }

// Label returns a human readable name for reports.
func (k KeyType) Label() string {
	switch k {
	case KeyTypePhone:
		return "phone"
	case KeyTypeEmail:
		return "email"
	case KeyTypeDocument:
		return "document"
	case KeyTypeRandom:
		return "random"
	default:
		return "unknown"
	}
}

// PaymentMethod routes a payment to a record family.
type PaymentMethod string

const (
	MethodPIX    PaymentMethod = "pix"
	MethodBoleto PaymentMethod = "boleto"
)

// boletoMinDigits is the digit count from which a key is read as a barcode.
const boletoMinDigits = 44

// MethodOf reports whether a key/barcode field belongs to the PIX or the boleto path.
func MethodOf(keyOrBarcode string) PaymentMethod {
	if len(Digits(keyOrBarcode)) >= boletoMinDigits {
		return MethodBoleto
	}
	return MethodPIX
}
