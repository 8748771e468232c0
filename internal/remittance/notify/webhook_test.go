package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifier_PostsSummary(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL)
	err := notifier.Notify(context.Background(), RemittanceMessage{
		TenantID:     "tenant-a",
		RemittanceID: "rem-1",
		Sequence:     12,
		FileName:     "REM000012.txt",
		PaymentCount: 2,
		TotalCents:   123456,
		Diagnostics:  map[string]int{"due_date": 1, "amount": 2},
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.MsgType != "text" || got.Remittance.Sequence != 12 {
		t.Fatalf("unexpected payload %+v", got)
	}
	content := got.Text.Content
	for _, want := range []string{"REM000012.txt (NSA 12)", "Total: R$ 1234.56", "Degraded fields: amount=2, due_date=1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("content missing %q:\n%s", want, content)
		}
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if err := NewWebhookNotifier(server.URL).Notify(context.Background(), RemittanceMessage{}); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestWebhookNotifier_EmptyURL(t *testing.T) {
	if err := NewWebhookNotifier("").Notify(context.Background(), RemittanceMessage{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
