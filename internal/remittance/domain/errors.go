package remittance

import "errors"

var (
	// ErrNilCounter is returned when an encoder is built without a sequence counter.
	ErrNilCounter = errors.New("remittance: nil sequence counter")
	// ErrInvalidSequence is returned when a counter yields a non-positive value.
	ErrInvalidSequence = errors.New("remittance: invalid sequence number")
	// ErrSequenceExhausted is returned when the counter passes the largest NSA
	// the 6-digit header field can hold.
	ErrSequenceExhausted = errors.New("remittance: sequence exceeds 999999")
	// ErrBoletoUnsupported is returned for payments routed to the boleto layout.
	ErrBoletoUnsupported = errors.New("remittance: boleto layout not supported")
	// ErrRemittanceNotFound is returned when a remittance is not found.
	ErrRemittanceNotFound = errors.New("remittance: not found")
	// ErrNilRemittance is returned when saving a nil remittance.
	ErrNilRemittance = errors.New("remittance: nil remittance")
	// ErrContentNotArchived is returned when a remittance has no archived content.
	ErrContentNotArchived = errors.New("remittance: content not archived")
	// ErrDigestMismatch is returned when archived content does not match its recorded digest.
	ErrDigestMismatch = errors.New("remittance: digest mismatch")
)
