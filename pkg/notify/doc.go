// Package notify delivers sync run summaries to operators over an
// outbound webhook.
//
// Delivery is fire-and-forget from the engine's point of view: the
// webhook call has a bounded timeout, payloads are signed with
// HMAC-SHA256 when a secret is configured, and a failed delivery is
// logged by the caller and otherwise dropped. Nothing in the sync path
// ever blocks on, or fails because of, notification.
package notify
