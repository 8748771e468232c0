package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	remittance "pix-remittance/internal/remittance/domain"
)

const defaultListLimit = 100

// RemittanceRepository persists generated remittances.
type RemittanceRepository struct {
	db *sql.DB
}

// NewRemittanceRepository constructs a repository.
func NewRemittanceRepository(db *sql.DB) *RemittanceRepository {
	return &RemittanceRepository{db: db}
}

// Save inserts or replaces a remittance.
func (r *RemittanceRepository) Save(ctx context.Context, rem *remittance.Remittance) error {
	if r == nil || r.db == nil {
		return errors.New("remittance repo: nil db")
	}
	if rem == nil {
		return remittance.ErrNilRemittance
	}
	diagnostics := rem.Diagnostics
	if diagnostics == nil {
		diagnostics = remittance.Diagnostics{}
	}
	payload, err := json.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("remittance repo: marshal diagnostics: %w", err)
	}
	createdAt := rem.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO remittances (
	id, tenant_id, sequence, file_name, payment_count, record_count,
	total_cents, digest, archive_key, diagnostics, generated_at, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
ON CONFLICT (id) DO UPDATE SET
	archive_key = EXCLUDED.archive_key,
	diagnostics = EXCLUDED.diagnostics`,
		rem.ID, rem.TenantID, rem.Sequence, rem.FileName, rem.PaymentCount, rem.RecordCount,
		rem.TotalCents, rem.Digest, nullString(rem.ArchiveKey), payload, rem.GeneratedAt, createdAt,
	)
	return err
}

// Get returns a remittance or nil when absent.
func (r *RemittanceRepository) Get(ctx context.Context, id string) (*remittance.Remittance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("remittance repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, sequence, file_name, payment_count, record_count,
	total_cents, digest, archive_key, diagnostics, generated_at, created_at
FROM remittances
WHERE id = $1
LIMIT 1`, id)
	return scanRemittance(row)
}

// List returns the tenant's remittances, newest sequence first.
func (r *RemittanceRepository) List(ctx context.Context, tenantID string, limit int) ([]remittance.Remittance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("remittance repo: nil db")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, sequence, file_name, payment_count, record_count,
	total_cents, digest, archive_key, diagnostics, generated_at, created_at
FROM remittances
WHERE tenant_id = $1
ORDER BY sequence DESC
LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []remittance.Remittance
	for rows.Next() {
		rem, err := scanRemittance(rows)
		if err != nil {
			return nil, err
		}
		if rem != nil {
			result = append(result, *rem)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRemittance(row rowScanner) (*remittance.Remittance, error) {
	var rem remittance.Remittance
	var archiveKey sql.NullString
	var diagnostics []byte
	err := row.Scan(
		&rem.ID,
		&rem.TenantID,
		&rem.Sequence,
		&rem.FileName,
		&rem.PaymentCount,
		&rem.RecordCount,
		&rem.TotalCents,
		&rem.Digest,
		&archiveKey,
		&diagnostics,
		&rem.GeneratedAt,
		&rem.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if archiveKey.Valid {
		rem.ArchiveKey = archiveKey.String
	}
	if len(diagnostics) > 0 {
		if err := json.Unmarshal(diagnostics, &rem.Diagnostics); err != nil {
			return nil, fmt.Errorf("remittance repo: decode diagnostics: %w", err)
		}
	}
	rem.GeneratedAt = rem.GeneratedAt.UTC()
	rem.CreatedAt = rem.CreatedAt.UTC()
	return &rem, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
