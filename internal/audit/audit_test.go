package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:4321"
	if got := ClientIP(req); got != "10.0.0.5" {
		t.Fatalf("remote addr: got %q", got)
	}
	req.Header.Set("X-Real-IP", " 10.0.0.9 ")
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Fatalf("x-real-ip: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}

func TestLogWriterFillsEntry(t *testing.T) {
	var buf bytes.Buffer
	writer := NewLogWriter(log.New(&buf, "", 0))
	err := writer.Log(context.Background(), Entry{
		TenantID:     "tenant-a",
		Action:       ActionGenerate,
		ResourceType: ResourceRemittance,
		ResourceID:   "rem-1",
		Metadata:     json.RawMessage(`{"sequence":7}`),
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	line := strings.TrimPrefix(strings.TrimSpace(buf.String()), "audit ")
	var entry Entry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(entry.ID, "audit-") {
		t.Fatalf("expected generated id, got %q", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatalf("expected created_at")
	}
	if entry.PayloadDigest != DigestJSON([]byte(`{"sequence":7}`)) || len(entry.PayloadDigest) != 64 {
		t.Fatalf("unexpected digest %q", entry.PayloadDigest)
	}
}
