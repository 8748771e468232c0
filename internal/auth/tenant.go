package auth

import (
	"context"
	"errors"

	remittance "pix-remittance/internal/remittance/domain"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// RemittanceTenantChecker validates remittance tenant ownership.
type RemittanceTenantChecker interface {
	EnsureRemittanceTenant(ctx context.Context, tenantID, remittanceID string) error
}

// RemittanceChecker checks remittance ownership against the repository.
type RemittanceChecker struct {
	repo remittance.Repository
}

// NewRemittanceChecker constructs a RemittanceChecker.
func NewRemittanceChecker(repo remittance.Repository) *RemittanceChecker {
	if repo == nil {
		return nil
	}
	return &RemittanceChecker{repo: repo}
}

// EnsureRemittanceTenant verifies the remittance belongs to tenant.
func (c *RemittanceChecker) EnsureRemittanceTenant(ctx context.Context, tenantID, remittanceID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || remittanceID == "" {
		return nil
	}
	rem, err := c.repo.Get(ctx, remittanceID)
	if err != nil {
		return err
	}
	if rem == nil {
		return ErrNotFound
	}
	if rem.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
