package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Summary is the operator-facing digest of one sync run
type Summary struct {
	RunID           string        `json:"run_id"`
	Strategy        string        `json:"strategy"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
	Processed       int           `json:"processed"`
	Updated         int           `json:"updated"`
	PlansDiscovered int           `json:"plans_discovered"`
	Errors          []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail is one per-record failure from a run
type ErrorDetail struct {
	SubscriptionID string `json:"subscription_id"`
	Message        string `json:"message"`
}

// Notifier accepts run summaries for operator delivery
type Notifier interface {
	Notify(ctx context.Context, summary *Summary) error
}

// WebhookNotifier posts signed JSON summaries to a configured URL
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a notifier targeting the given URL. An empty
// secret disables payload signing.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify delivers one summary. Callers are expected to treat errors as
// log-and-drop; the notifier itself performs no retries.
func (n *WebhookNotifier) Notify(ctx context.Context, summary *Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bazaar-Event", "subscription_sync.completed")
	req.Header.Set("X-Bazaar-Run", summary.RunID)
	req.Header.Set("X-Bazaar-Delivery", time.Now().UTC().Format(time.RFC3339))
	if n.secret != "" {
		req.Header.Set("X-Bazaar-Signature", sign(payload, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}

	return nil
}

// VerifySignature checks a received payload against its signature header
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(sign(payload, secret)), []byte(signature))
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
