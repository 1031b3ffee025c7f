package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProviderConfig holds the settings for an HTTP mail provider API.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// ProviderTransport sends mail through a JSON mail-provider API. Used when no
// SMTP relay is available; the payload shape follows the common transactional
// mail providers.
type ProviderTransport struct {
	client *resty.Client
	from   string
}

func NewProviderTransport(cfg ProviderConfig) *ProviderTransport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &ProviderTransport{client: client, from: cfg.From}
}

type providerAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"` // base64
}

type providerPayload struct {
	From        string               `json:"from"`
	To          string               `json:"to"`
	Subject     string               `json:"subject"`
	Text        string               `json:"text"`
	Attachments []providerAttachment `json:"attachments,omitempty"`
}

func (t *ProviderTransport) Send(ctx context.Context, msg *Message) error {
	payload := providerPayload{
		From:    t.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if msg.Attachment != nil {
		payload.Attachments = append(payload.Attachments, providerAttachment{
			Filename:    msg.Attachment.Filename,
			ContentType: msg.Attachment.ContentType,
			Content:     base64.StdEncoding.EncodeToString(msg.Attachment.Content),
		})
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/messages")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
