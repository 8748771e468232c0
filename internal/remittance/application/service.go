package application

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"pix-remittance/internal/observability/metrics"
	remittance "pix-remittance/internal/remittance/domain"
	"pix-remittance/internal/remittance/notify"
)

const defaultTenant = "default"

// Archive stores emitted file contents.
type Archive interface {
	Put(key string, content []byte) (string, error)
	Get(key string) ([]byte, error)
}

// Service generates, records and serves remittance files.
type Service struct {
	encoder       *remittance.Encoder
	repo          remittance.Repository
	archive       Archive
	notifier      notify.Notifier
	logger        *log.Logger
	clock         remittance.Clock
	publicBaseURL string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier sends a notification after every generated file.
func WithNotifier(notifier notify.Notifier) ServiceOption {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(clock remittance.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPublicBaseURL sets the base used for download links in notifications.
func WithPublicBaseURL(base string) ServiceOption {
	return func(s *Service) {
		s.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// NewService constructs a remittance service.
func NewService(encoder *remittance.Encoder, repo remittance.Repository, archive Archive, opts ...ServiceOption) (*Service, error) {
	if encoder == nil {
		return nil, errors.New("remittance service: nil encoder")
	}
	if repo == nil {
		return nil, errors.New("remittance service: nil repo")
	}
	if archive == nil {
		return nil, errors.New("remittance service: nil archive")
	}
	s := &Service{
		encoder:  encoder,
		repo:     repo,
		archive:  archive,
		notifier: notify.Nop{},
		logger:   log.Default(),
		clock:    remittance.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate encodes payments into a new remittance file and records it.
// Diagnostics produced before encoding (for example while reading a payment
// queue) are merged with the encoder's, ordered by row. An empty batch returns
// nil without consuming a sequence number.
func (s *Service) Generate(ctx context.Context, tenantID string, payments []remittance.PaymentInstruction, originator remittance.OriginatorProfile, upstream remittance.Diagnostics) (*remittance.Remittance, error) {
	start := time.Now()
	rem, err := s.generate(ctx, tenantID, payments, originator, upstream)
	switch {
	case err != nil:
		metrics.ObserveGenerate(metrics.ResultError, time.Since(start))
		s.logger.Printf("remittance generate failed: tenant=%s payments=%d err=%v", tenantID, len(payments), err)
		return nil, err
	case rem == nil:
		metrics.ObserveGenerate(metrics.ResultEmpty, time.Since(start))
		s.logger.Printf("remittance skipped: tenant=%s no pix payments", tenantID)
		return nil, nil
	}
	metrics.ObserveGenerate(metrics.ResultSuccess, time.Since(start))
	metrics.ObserveFile(rem.Sequence, rem.PaymentCount, rem.Diagnostics.ByField())
	s.logger.Printf("remittance generated: nsa=%d payments=%d total_cents=%d diagnostics=%d",
		rem.Sequence, rem.PaymentCount, rem.TotalCents, len(rem.Diagnostics))

	if err := s.notifier.Notify(ctx, s.message(rem)); err != nil {
		metrics.IncNotify(metrics.ResultError)
		s.logger.Printf("remittance notify failed: nsa=%d err=%v", rem.Sequence, err)
	} else {
		metrics.IncNotify(metrics.ResultSuccess)
	}
	return rem, nil
}

func (s *Service) generate(ctx context.Context, tenantID string, payments []remittance.PaymentInstruction, originator remittance.OriginatorProfile, upstream remittance.Diagnostics) (*remittance.Remittance, error) {
	file, err := s.encoder.Encode(ctx, payments, originator)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}

	diags := make(remittance.Diagnostics, 0, len(upstream)+len(file.Diagnostics))
	diags = append(diags, upstream...)
	diags = append(diags, file.Diagnostics...)
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Row < diags[j].Row })

	rem := &remittance.Remittance{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Sequence:     file.Sequence,
		FileName:     file.FileName(),
		PaymentCount: file.PaymentCount,
		RecordCount:  file.RecordCount,
		TotalCents:   file.TotalCents,
		Digest:       Digest(file.Content),
		Diagnostics:  diags,
		GeneratedAt:  file.GeneratedAt,
		CreatedAt:    s.clock.Now().UTC(),
	}
	key, err := s.archive.Put(archiveKey(tenantID, rem.ID, file), file.Content)
	if err != nil {
		return nil, fmt.Errorf("remittance service: archive nsa %d: %w", file.Sequence, err)
	}
	rem.ArchiveKey = key
	if err := s.repo.Save(ctx, rem); err != nil {
		return nil, fmt.Errorf("remittance service: save nsa %d: %w", file.Sequence, err)
	}
	return rem, nil
}

// Get loads a remittance by id.
func (s *Service) Get(ctx context.Context, id string) (*remittance.Remittance, error) {
	rem, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem == nil {
		return nil, remittance.ErrRemittanceNotFound
	}
	return rem, nil
}

// List returns the most recent remittances of a tenant.
func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]remittance.Remittance, error) {
	return s.repo.List(ctx, tenantID, limit)
}

// Content returns the archived file of a remittance after checking its digest.
func (s *Service) Content(ctx context.Context, rem *remittance.Remittance) ([]byte, error) {
	if rem == nil {
		return nil, remittance.ErrNilRemittance
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rem.ArchiveKey == "" {
		return nil, remittance.ErrContentNotArchived
	}
	content, err := s.archive.Get(rem.ArchiveKey)
	if err != nil {
		return nil, fmt.Errorf("remittance service: load %s: %w", rem.ArchiveKey, err)
	}
	if rem.Digest != "" && Digest(content) != rem.Digest {
		return nil, remittance.ErrDigestMismatch
	}
	return content, nil
}

func (s *Service) message(rem *remittance.Remittance) notify.RemittanceMessage {
	msg := notify.RemittanceMessage{
		TenantID:     rem.TenantID,
		RemittanceID: rem.ID,
		Sequence:     rem.Sequence,
		FileName:     rem.FileName,
		PaymentCount: rem.PaymentCount,
		TotalCents:   rem.TotalCents,
		Digest:       rem.Digest,
		Diagnostics:  rem.Diagnostics.ByField(),
	}
	if s.publicBaseURL != "" {
		msg.DownloadURL = s.publicBaseURL + "/api/v1/remittances/" + rem.ID + "/download"
	}
	return msg
}

// Digest returns the BLAKE3 hex digest of a file.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// archiveKey lays files out as tenant/yyyy/mm/<remittance id>/REMnnnnnn.txt.
// The id keeps a reused NSA from landing on an earlier file.
func archiveKey(tenantID, remittanceID string, file *remittance.EncodedFile) string {
	tenant := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return '_'
		}
		return r
	}, strings.TrimSpace(tenantID))
	if tenant == "" {
		tenant = defaultTenant
	}
	return path.Join(tenant, file.GeneratedAt.Format("2006"), file.GeneratedAt.Format("01"), remittanceID, file.FileName())
}
