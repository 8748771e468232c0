package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WebhookNotifier posts remittance summaries to a webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType    string            `json:"msgtype"`
	Text       webhookText       `json:"text"`
	Remittance RemittanceMessage `json:"remittance"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the message to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg RemittanceMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	body, err := json.Marshal(webhookPayload{
		MsgType:    "text",
		Text:       webhookText{Content: formatMessage(msg)},
		Remittance: msg,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatMessage(msg RemittanceMessage) string {
	var b strings.Builder
	b.WriteString("[Remittance Generated]\n")
	if msg.TenantID != "" {
		fmt.Fprintf(&b, "Tenant: %s\n", msg.TenantID)
	}
	fmt.Fprintf(&b, "File: %s (NSA %d)\n", msg.FileName, msg.Sequence)
	fmt.Fprintf(&b, "Payments: %d\n", msg.PaymentCount)
	fmt.Fprintf(&b, "Total: R$ %s\n", decimal.New(msg.TotalCents, -2).StringFixed(2))
	if msg.DownloadURL != "" {
		fmt.Fprintf(&b, "Download: %s\n", msg.DownloadURL)
	}
	if len(msg.Diagnostics) > 0 {
		fields := make([]string, 0, len(msg.Diagnostics))
		for field := range msg.Diagnostics {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, fmt.Sprintf("%s=%d", field, msg.Diagnostics[field]))
		}
		fmt.Fprintf(&b, "Degraded fields: %s\n", strings.Join(parts, ", "))
	}
	return strings.TrimSpace(b.String())
}
