package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	remittance "pix-remittance/internal/remittance/domain"
	"pix-remittance/internal/remittance/infrastructure/file"
	"pix-remittance/internal/remittance/infrastructure/memory"
	"pix-remittance/internal/remittance/notify"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	messages []notify.RemittanceMessage
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.RemittanceMessage) error {
	n.messages = append(n.messages, msg)
	return n.err
}

type failingArchive struct{}

func (failingArchive) Put(string, []byte) (string, error) { return "", errors.New("disk full") }
func (failingArchive) Get(string) ([]byte, error)         { return nil, errors.New("disk full") }

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	service  *Service
	counter  *memory.SequenceCounter
	repo     *memory.RemittanceRepository
	archive  *memory.Archive
	notifier *recordingNotifier
	logs     *bytes.Buffer
}

func newFixture(t *testing.T, start int) fixture {
	t.Helper()
	counter := memory.NewSequenceCounter(start)
	encoder, err := remittance.NewEncoder(counter, remittance.WithClock(fixedClock{now: now}), remittance.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	repo := memory.NewRemittanceRepository()
	archive := memory.NewArchive()
	notifier := &recordingNotifier{}
	logs := &bytes.Buffer{}
	service, err := NewService(encoder, repo, archive,
		WithNotifier(notifier),
		WithLogger(log.New(logs, "", 0)),
		WithClock(fixedClock{now: now}),
		WithPublicBaseURL("https://pay.example.com/"),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{service: service, counter: counter, repo: repo, archive: archive, notifier: notifier, logs: logs}
}

func payments() []remittance.PaymentInstruction {
	return []remittance.PaymentInstruction{
		{
			BeneficiaryName: "Maria Souza",
			Amount:          decimal.RequireFromString("150.00"),
			DueDate:         time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
			Document:        "123.456.789-09",
			Key:             "maria@example.com",
		},
		{
			BeneficiaryName: "Clínica Vida",
			Amount:          decimal.RequireFromString("1234.56"),
			DueDate:         time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC),
			Document:        "12.345.678/0001-90",
			Key:             "12345678000190",
		},
	}
}

func TestGenerate_RecordsArchivesAndNotifies(t *testing.T) {
	f := newFixture(t, 41)

	rem, err := f.service.Generate(context.Background(), "tenant-a", payments(), remittance.OriginatorProfile{Name: "Hospital"}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rem == nil {
		t.Fatalf("expected remittance")
	}
	if rem.Sequence != 42 || rem.FileName != "REM000042.txt" {
		t.Fatalf("unexpected sequence/file name: %d %s", rem.Sequence, rem.FileName)
	}
	if rem.PaymentCount != 2 || rem.RecordCount != 8 || rem.TotalCents != 138456 {
		t.Fatalf("unexpected totals: %+v", rem)
	}
	if rem.ArchiveKey != "tenant-a/2025/03/"+rem.ID+"/REM000042.txt" {
		t.Fatalf("unexpected archive key %q", rem.ArchiveKey)
	}
	if !rem.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at %v", rem.CreatedAt)
	}

	stored, err := f.service.Get(context.Background(), rem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	content, err := f.service.Content(context.Background(), stored)
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if Digest(content) != rem.Digest {
		t.Fatalf("digest mismatch")
	}
	if lines := strings.Count(string(content), "\r\n"); lines != 8 {
		t.Fatalf("expected 8 records, got %d", lines)
	}

	if len(f.notifier.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.messages))
	}
	msg := f.notifier.messages[0]
	if msg.DownloadURL != "https://pay.example.com/api/v1/remittances/"+rem.ID+"/download" {
		t.Fatalf("unexpected download url %q", msg.DownloadURL)
	}
	if !strings.Contains(f.logs.String(), "remittance generated: nsa=42 payments=2") {
		t.Fatalf("missing log line: %s", f.logs.String())
	}
}

func TestGenerate_EmptyBatchKeepsSequence(t *testing.T) {
	f := newFixture(t, 7)

	rem, err := f.service.Generate(context.Background(), "tenant-a", nil, remittance.OriginatorProfile{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rem != nil {
		t.Fatalf("expected nil remittance for empty batch")
	}
	if f.counter.Current() != 7 {
		t.Fatalf("counter advanced to %d", f.counter.Current())
	}
	if len(f.notifier.messages) != 0 {
		t.Fatalf("unexpected notification")
	}
	list, err := f.service.List(context.Background(), "tenant-a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no remittances, got %d", len(list))
	}
}

func TestGenerate_MergesUpstreamDiagnostics(t *testing.T) {
	f := newFixture(t, 0)
	batch := payments()
	batch[1].DueDate = time.Time{}
	upstream := remittance.Diagnostics{{Row: 1, Field: remittance.FieldAmount, Reason: "sheet row 2: unparseable amount"}}

	rem, err := f.service.Generate(context.Background(), "tenant-a", batch, remittance.OriginatorProfile{}, upstream)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(rem.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %+v", rem.Diagnostics)
	}
	if rem.Diagnostics[0].Row != 1 || rem.Diagnostics[0].Field != remittance.FieldAmount {
		t.Fatalf("unexpected first diagnostic %+v", rem.Diagnostics[0])
	}
	if rem.Diagnostics[1].Row != 2 || rem.Diagnostics[1].Field != remittance.FieldDueDate {
		t.Fatalf("unexpected second diagnostic %+v", rem.Diagnostics[1])
	}
	if got := f.notifier.messages[0].Diagnostics[remittance.FieldDueDate]; got != 1 {
		t.Fatalf("expected due date diagnostic in notification, got %d", got)
	}
}

func TestGenerate_NotifyFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, 0)
	f.notifier.err = errors.New("webhook down")

	rem, err := f.service.Generate(context.Background(), "", payments(), remittance.OriginatorProfile{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(rem.ArchiveKey, "default/") {
		t.Fatalf("expected default tenant archive key, got %q", rem.ArchiveKey)
	}
	if !strings.Contains(f.logs.String(), "remittance notify failed") {
		t.Fatalf("expected notify failure log")
	}
}

func TestGenerate_ArchiveFailure(t *testing.T) {
	counter := memory.NewSequenceCounter(0)
	encoder, _ := remittance.NewEncoder(counter)
	repo := memory.NewRemittanceRepository()
	service, err := NewService(encoder, repo, failingArchive{}, WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.Generate(context.Background(), "tenant-a", payments(), remittance.OriginatorProfile{}, nil); err == nil {
		t.Fatalf("expected archive error")
	}
	list, _ := repo.List(context.Background(), "tenant-a", 10)
	if len(list) != 0 {
		t.Fatalf("remittance recorded despite archive failure")
	}
}

func TestContent_DigestMismatch(t *testing.T) {
	f := newFixture(t, 0)
	rem, err := f.service.Generate(context.Background(), "tenant-a", payments(), remittance.OriginatorProfile{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	tampered := *rem
	tampered.Digest = Digest([]byte("other content"))
	if _, err := f.service.Content(context.Background(), &tampered); !errors.Is(err, remittance.ErrDigestMismatch) {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestGenerate_CounterResetKeepsEarlierArchive(t *testing.T) {
	dir := t.TempDir()
	counterPath := filepath.Join(dir, "nsa")
	counter, err := file.NewSequenceCounter(counterPath)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	archive, err := file.NewArchive(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	encoder, err := remittance.NewEncoder(counter, remittance.WithClock(fixedClock{now: now}), remittance.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	service, err := NewService(encoder, memory.NewRemittanceRepository(), archive, WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	first, err := service.Generate(context.Background(), "t", payments(), remittance.OriginatorProfile{}, nil)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if err := os.WriteFile(counterPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}
	second, err := service.Generate(context.Background(), "t", payments()[:1], remittance.OriginatorProfile{}, nil)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if first.Sequence != 1 || second.Sequence != 1 {
		t.Fatalf("expected the reset counter to reuse nsa 1, got %d and %d", first.Sequence, second.Sequence)
	}
	if first.ArchiveKey == second.ArchiveKey {
		t.Fatalf("archive keys collide: %q", first.ArchiveKey)
	}
	for _, rem := range []*remittance.Remittance{first, second} {
		if _, err := service.Content(context.Background(), rem); err != nil {
			t.Fatalf("content of %s: %v", rem.ID, err)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.service.Get(context.Background(), "missing"); !errors.Is(err, remittance.ErrRemittanceNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewService_NilGuards(t *testing.T) {
	encoder, _ := remittance.NewEncoder(memory.NewSequenceCounter(0))
	repo := memory.NewRemittanceRepository()
	if _, err := NewService(nil, repo, memory.NewArchive()); err == nil {
		t.Fatalf("expected nil encoder error")
	}
	if _, err := NewService(encoder, nil, memory.NewArchive()); err == nil {
		t.Fatalf("expected nil repo error")
	}
	if _, err := NewService(encoder, repo, nil); err == nil {
		t.Fatalf("expected nil archive error")
	}
}
