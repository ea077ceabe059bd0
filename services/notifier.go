// dance-battle-system/services/notifier.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dance-battle-system/utils"
)

// NotificationKind tags the out-of-band messages the engine emits.
type NotificationKind string

const (
	NotifyAwaitingAdmin NotificationKind = "match_awaiting_admin"
	NotifyMatchClosed   NotificationKind = "match_closed"
)

// Notifier delivers a typed notification out-of-band. Fire-and-forget: a
// failed delivery never rolls back the transition that triggered it.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind NotificationKind, payload map[string]any) error
}

// MailClient sends notifications through the mail service.
type MailClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewMailClient(baseURL, token string) *MailClient {
	return &MailClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
	}
}

func (c *MailClient) Notify(ctx context.Context, recipient string, kind NotificationKind, payload map[string]any) error {
	body := map[string]any{
		"recipient": recipient,
		"kind":      string(kind),
		"payload":   payload,
	}
	jsonData, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/v1/send", c.BaseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		utils.Error("mail service unreachable", "recipient", recipient, "kind", kind, "err", err)
		return ErrNotifierUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		utils.Error("mail service rejected notification", "status", resp.StatusCode, "body", string(body))
		return ErrNotifierUnavailable
	}
	return nil
}
