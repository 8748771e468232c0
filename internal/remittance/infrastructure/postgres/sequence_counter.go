package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

const defaultSequenceName = "nsa"

// SequenceCounter increments a named row of remittance_sequences in a single
// statement, so concurrent generators serialize on the row lock.
type SequenceCounter struct {
	db   *sql.DB
	name string
}

// SequenceOption configures the counter.
type SequenceOption func(*SequenceCounter)

// WithSequenceName selects the counter row, typically one per originator.
func WithSequenceName(name string) SequenceOption {
	return func(c *SequenceCounter) {
		if strings.TrimSpace(name) != "" {
			c.name = name
		}
	}
}

// NewSequenceCounter constructs a counter.
func NewSequenceCounter(db *sql.DB, opts ...SequenceOption) *SequenceCounter {
	c := &SequenceCounter{db: db, name: defaultSequenceName}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next advances and returns the counter. A missing row starts at 1.
func (c *SequenceCounter) Next(ctx context.Context) (int, error) {
	if c == nil || c.db == nil {
		return 0, errors.New("sequence counter: nil db")
	}
	var value int64
	err := c.db.QueryRowContext(ctx, `
INSERT INTO remittance_sequences (name, value, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (name)
DO UPDATE SET value = remittance_sequences.value + 1, updated_at = NOW()
RETURNING value`, c.name).Scan(&value)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}
