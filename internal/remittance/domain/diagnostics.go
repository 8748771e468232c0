package remittance

// Field names reported in diagnostics.
const (
	FieldBeneficiaryName = "beneficiary_name"
	FieldAmount          = "amount"
	FieldDueDate         = "due_date"
	FieldDocument        = "document"
	FieldKey             = "key"
	FieldMethod          = "method"
)

// Diagnostic records a field that was replaced by a fallback value instead of
// rejecting the payment.
type Diagnostic struct {
	Row      int    `json:"row"`
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Fallback string `json:"fallback,omitempty"`
}

// Diagnostics is an ordered list of degradations for one batch.
type Diagnostics []Diagnostic

// ByField counts diagnostics per field.
func (d Diagnostics) ByField() map[string]int {
	counts := make(map[string]int, len(d))
	for _, item := range d {
		counts[item.Field]++
	}
	return counts
}
