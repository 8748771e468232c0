package remittance

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// RecordLength is the fixed width of every record.
	RecordLength = 240
	// LineTerminator ends every record.
	LineTerminator = "\r\n"

	fileLayoutVersion  = "083"
	batchLayoutVersion = "046"
	batchPurpose       = "PAGAMENTO FORNECEDORES"
	serviceSupplier    = "20"
	methodPIX          = "45"
	chamberPIX         = "009"
	currencyBRL        = "BRL"

	lotFile    = "0000"
	lotBatch   = "0001"
	lotTrailer = "9999"

	recordFileHeader   = "0"
	recordBatchHeader  = "1"
	recordDetail       = "3"
	recordBatchTrailer = "5"
	recordFileTrailer  = "9"
)

// record accumulates fields left to right and yields a fixed-width line.
type record struct {
	b strings.Builder
}

func (r *record) lit(value string) *record {
	r.b.WriteString(value)
	return r
}

func (r *record) text(value string, width int) *record {
	return r.lit(Text(value, width))
}

func (r *record) raw(value string, width int) *record {
	return r.lit(Raw(value, width))
}

func (r *record) num(value string, width int) *record {
	return r.lit(Numeric(value, width))
}

func (r *record) blank(width int) *record {
	return r.lit(Blank(width))
}

func (r *record) zeros(width int) *record {
	return r.lit(Zeros(width))
}

func (r *record) amount(cents int64, width int) *record {
	return r.lit(Amount(cents, width))
}

// line pads or truncates the record to RecordLength characters.
func (r *record) line() string {
	value := r.b.String()
	n := utf8.RuneCountInString(value)
	if n > RecordLength {
		return string([]rune(value)[:RecordLength])
	}
	return value + Blank(RecordLength-n)
}

// RecordBuilder renders the records of a single-batch PIX remittance.
type RecordBuilder struct {
	originator  OriginatorProfile
	sequence    int
	generatedAt time.Time
}

// NewRecordBuilder constructs a builder for one file.
func NewRecordBuilder(originator OriginatorProfile, sequence int, generatedAt time.Time) *RecordBuilder {
	return &RecordBuilder{originator: originator, sequence: sequence, generatedAt: generatedAt}
}

func (b *RecordBuilder) start(lot, kind string) *record {
	r := &record{}
	return r.num(b.originator.BankCode, 3).lit(lot).lit(kind)
}

// originatorAccount writes inscription, tax id, agreement, branch and account (positions 18-72).
func (b *RecordBuilder) originatorAccount(r *record) *record {
	o := b.originator
	return r.lit(inscriptionType(o.TaxID)).
		num(o.TaxID, 14).
		text(o.Agreement, 20).
		num(o.Branch, 5).
		text(o.BranchDigit, 1).
		num(o.Account, 12).
		text(o.AccountDigit, 1).
		blank(1)
}

// FileHeader renders record type 0.
func (b *RecordBuilder) FileHeader() string {
	r := b.start(lotFile, recordFileHeader).blank(9)
	b.originatorAccount(r)
	return r.text(b.originator.Name, 30).
		text(b.originator.BankName, 30).
		blank(10).
		lit("1").
		lit(Date(b.generatedAt)).
		lit(TimeOfDay(b.generatedAt)).
		num(strconv.Itoa(b.sequence), 6).
		lit(fileLayoutVersion).
		zeros(5).
		line()
}

// BatchHeader renders record type 1.
func (b *RecordBuilder) BatchHeader() string {
	addr := b.originator.Address
	postal := Numeric(addr.PostalCode, 8)
	r := b.start(lotBatch, recordBatchHeader).
		lit("C").
		lit(serviceSupplier).
		lit(methodPIX).
		lit(batchLayoutVersion).
		blank(1)
	b.originatorAccount(r)
	return r.text(b.originator.Name, 30).
		text(batchPurpose, 40).
		text(addr.Street, 30).
		num(addr.Number, 5).
		text(addr.Complement, 15).
		text(addr.City, 20).
		lit(postal[:5]).
		lit(postal[5:]).
		text(addr.State, 2).
		line()
}

// SegmentA renders the payment record of a detail. seq is the record sequence within the batch.
func (b *RecordBuilder) SegmentA(seq int, d Detail) string {
	return b.start(lotBatch, recordDetail).
		num(strconv.Itoa(seq), 5).
		lit("A").
		lit("0").
		lit("00").
		lit(chamberPIX).
		lit("000").
		zeros(5).
		zeros(1).
		zeros(12).
		zeros(1).
		blank(1).
		text(d.BeneficiaryName, nameWidth).
		raw(d.Key, segmentAKeyWidth).
		lit(Date(d.DueDate)).
		lit(currencyBRL).
		zeros(15).
		amount(d.Cents, amountWidth).
		blank(20).
		lit(Date(d.DueDate)).
		amount(d.Cents, amountWidth).
		blank(40).
		blank(2).
		blank(5).
		lit("CC").
		blank(3).
		lit("0").
		blank(10).
		line()
}

// SegmentB renders the beneficiary record of a detail, with the key type
// already classified.
func (b *RecordBuilder) SegmentB(seq int, d Detail) string {
	return b.start(lotBatch, recordDetail).
		num(strconv.Itoa(seq), 5).
		lit("B").
		text(d.KeyType.String(), 3).
		lit(inscriptionType(d.Document)).
		num(d.Document, documentWidth).
		blank(93).
		text(b.originator.beneficiaryState(), 2).
		raw(d.Key, segmentBKeyWidth).
		blank(14).
		line()
}

// BatchTrailer renders record type 5. records is the batch record count
// including its header and trailer.
func (b *RecordBuilder) BatchTrailer(records int, totalCents int64) string {
	return b.start(lotBatch, recordBatchTrailer).
		blank(9).
		num(strconv.Itoa(records), 6).
		amount(totalCents, batchTotalWidth).
		zeros(18).
		zeros(6).
		line()
}

// FileTrailer renders record type 9. records is the file record count.
func (b *RecordBuilder) FileTrailer(records int) string {
	return b.start(lotTrailer, recordFileTrailer).
		blank(9).
		lit("000001").
		num(strconv.Itoa(records), 6).
		zeros(6).
		line()
}

// Batch is the rendered record sequence of one file.
type Batch struct {
	Records      []string
	PaymentCount int
	TotalCents   int64
	Diagnostics  Diagnostics
}

// Build resolves every payment and renders the full record sequence in file order.
func (b *RecordBuilder) Build(payments []PaymentInstruction) Batch {
	batch := Batch{Records: make([]string, 0, len(payments)*2+4)}
	batch.Records = append(batch.Records, b.FileHeader(), b.BatchHeader())

	seq := 0
	for i, payment := range payments {
		detail, diags := ResolveDetail(i+1, payment, b.generatedAt)
		batch.Diagnostics = append(batch.Diagnostics, diags...)
		if detail.Cents > maxBatchCents-batch.TotalCents {
			batch.Diagnostics = append(batch.Diagnostics, Diagnostic{
				Row:      detail.Row,
				Field:    FieldAmount,
				Reason:   "batch total exceeds 18 digits",
				Fallback: "0",
			})
			detail.Cents = 0
		}
		seq++
		batch.Records = append(batch.Records, b.SegmentA(seq, detail))
		seq++
		batch.Records = append(batch.Records, b.SegmentB(seq, detail))
		batch.TotalCents += detail.Cents
		batch.PaymentCount++
	}

	batchRecords := seq + 2
	batch.Records = append(batch.Records,
		b.BatchTrailer(batchRecords, batch.TotalCents),
		b.FileTrailer(batchRecords+2),
	)
	return batch
}

// Content joins the records, each followed by the line terminator.
func (b Batch) Content() []byte {
	var buf strings.Builder
	buf.Grow(len(b.Records) * (RecordLength + len(LineTerminator)))
	for _, rec := range b.Records {
		buf.WriteString(rec)
		buf.WriteString(LineTerminator)
	}
	return []byte(buf.String())
}
