package remittance

import (
	"context"
	"fmt"
	"time"
)

// Clock provides time for the encoder.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time { return time.Now() }

// EncodedFile is the output of one encoding pass.
type EncodedFile struct {
	Sequence     int
	GeneratedAt  time.Time
	Content      []byte
	RecordCount  int
	PaymentCount int
	TotalCents   int64
	Diagnostics  Diagnostics
}

// MaxSequence is the largest NSA the file header can carry.
const MaxSequence = 999999

// FileName returns the conventional name of the file, REM plus the NSA.
func (f *EncodedFile) FileName() string {
	return FileName(f.Sequence)
}

// FileName builds the file name for a sequence number.
func FileName(sequence int) string {
	return fmt.Sprintf("REM%06d.txt", sequence)
}

// Encoder turns a PIX payment batch into a CNAB240 remittance file.
type Encoder struct {
	counter  SequenceCounter
	clock    Clock
	location *time.Location
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithClock overrides the generation clock.
func WithClock(clock Clock) EncoderOption {
	return func(e *Encoder) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLocation renders generation date/time in loc.
func WithLocation(loc *time.Location) EncoderOption {
	return func(e *Encoder) {
		if loc != nil {
			e.location = loc
		}
	}
}

// NewEncoder constructs an Encoder.
func NewEncoder(counter SequenceCounter, opts ...EncoderOption) (*Encoder, error) {
	if counter == nil {
		return nil, ErrNilCounter
	}
	e := &Encoder{counter: counter, clock: SystemClock{}, location: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Encode renders payments into a remittance file. An empty batch returns a nil
// file and leaves the sequence counter untouched. Otherwise the counter is
// advanced exactly once. Field problems never fail the batch; they are
// returned as diagnostics. Boleto payments have no record layout here and are
// left out of the file with a diagnostic.
func (e *Encoder) Encode(ctx context.Context, payments []PaymentInstruction, originator OriginatorProfile) (*EncodedFile, error) {
	pix, rows, skipped := splitPIX(payments)
	if len(pix) == 0 {
		return nil, nil
	}

	sequence, err := e.counter.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("remittance: next sequence: %w", err)
	}
	if sequence <= 0 {
		return nil, ErrInvalidSequence
	}
	if sequence > MaxSequence {
		return nil, fmt.Errorf("%w: got %d", ErrSequenceExhausted, sequence)
	}

	generatedAt := e.clock.Now().In(e.location)
	batch := NewRecordBuilder(originator, sequence, generatedAt).Build(pix)
	for i := range batch.Diagnostics {
		batch.Diagnostics[i].Row = rows[batch.Diagnostics[i].Row-1]
	}
	diags := append(skipped, batch.Diagnostics...)

	return &EncodedFile{
		Sequence:     sequence,
		GeneratedAt:  generatedAt,
		Content:      batch.Content(),
		RecordCount:  len(batch.Records),
		PaymentCount: batch.PaymentCount,
		TotalCents:   batch.TotalCents,
		Diagnostics:  diags,
	}, nil
}

// splitPIX keeps the PIX payments and their 1-based positions in payments.
func splitPIX(payments []PaymentInstruction) ([]PaymentInstruction, []int, Diagnostics) {
	pix := make([]PaymentInstruction, 0, len(payments))
	rows := make([]int, 0, len(payments))
	var skipped Diagnostics
	for i, payment := range payments {
		if payment.Method() == MethodBoleto {
			skipped = append(skipped, Diagnostic{
				Row:    i + 1,
				Field:  FieldMethod,
				Reason: ErrBoletoUnsupported.Error(),
			})
			continue
		}
		pix = append(pix, payment)
		rows = append(rows, i+1)
	}
	return pix, rows, skipped
}
