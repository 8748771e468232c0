package notify

import "context"

// RemittanceMessage describes a generated remittance file.
type RemittanceMessage struct {
	TenantID     string         `json:"tenant_id"`
	RemittanceID string         `json:"remittance_id"`
	Sequence     int            `json:"sequence"`
	FileName     string         `json:"file_name"`
	PaymentCount int            `json:"payment_count"`
	TotalCents   int64          `json:"total_cents"`
	Digest       string         `json:"digest"`
	Diagnostics  map[string]int `json:"diagnostics,omitempty"`
	DownloadURL  string         `json:"download_url,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg RemittanceMessage) error
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, RemittanceMessage) error { return nil }
