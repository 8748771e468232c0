package remittance

import (
	"context"
	"time"
)

// Remittance is the persisted record of a generated file.
type Remittance struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	Sequence     int         `json:"sequence"`
	FileName     string      `json:"file_name"`
	PaymentCount int         `json:"payment_count"`
	RecordCount  int         `json:"record_count"`
	TotalCents   int64       `json:"total_cents"`
	Digest       string      `json:"digest"`
	ArchiveKey   string      `json:"archive_key,omitempty"`
	Diagnostics  Diagnostics `json:"diagnostics"`
	GeneratedAt  time.Time   `json:"generated_at"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Repository persists generated remittances.
type Repository interface {
	Save(ctx context.Context, r *Remittance) error
	Get(ctx context.Context, id string) (*Remittance, error)
	List(ctx context.Context, tenantID string, limit int) ([]Remittance, error)
}
