// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/newthinker/pushrelay/internal/core"
	"github.com/newthinker/pushrelay/internal/notifier"
)

// Settings keys
const (
	SettingURL    = "url"
	SettingSecret = "secret"
	SettingEvent  = "event"
)

// SecretHeader carries the shared secret on every request
const SecretHeader = "X-Webhook-Secret"

var events = []core.Option{
	{ID: "alert", Name: "Alert"},
	{ID: "billing", Name: "Billing"},
	{ID: "support", Name: "Support"},
	{ID: "system", Name: "System"},
}

// Webhook implements the Notifier interface for HTTP webhooks
type Webhook struct {
	headers map[string]string
	client  *http.Client
}

// New creates a new Webhook notifier
func New(headers map[string]string) *Webhook {
	return &Webhook{
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if headers, ok := cfg.Params["headers"].(map[string]any); ok {
		w.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			w.headers[k] = fmt.Sprint(v)
		}
	}
	if headers, ok := cfg.Params["headers"].(map[string]string); ok {
		w.headers = headers
	}

	if cfg.Timeout > 0 {
		w.client = &http.Client{Timeout: cfg.Timeout}
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (w *Webhook) ModuleSettingsSchema() core.Schema {
	return core.Schema{
		{Key: SettingURL, Label: "Endpoint URL", Kind: core.FieldText, Description: "The URL notifications are posted to.", Required: true},
		{Key: SettingSecret, Label: "Shared Secret", Kind: core.FieldPassword, Description: "Sent in the " + SecretHeader + " header."},
	}
}

func (w *Webhook) ChannelSettingsSchema() core.Schema {
	return core.Schema{
		{Key: SettingEvent, Label: "Event Type", Kind: core.FieldDynamic, Description: "Event type reported to the receiver."},
	}
}

// TestConnection reports untested: posting a probe would deliver a
// notification to the receiver.
func (w *Webhook) TestConnection(ctx context.Context, module core.Settings) core.ConnectionResult {
	if _, err := endpoint(module); err != nil {
		return core.ConnectionResult{Status: core.ConnectionFailed, Detail: err.Error()}
	}
	return core.ConnectionResult{
		Status: core.ConnectionUntested,
		Detail: "webhook receivers are not probed; the URL is checked on the first send",
	}
}

func (w *Webhook) ResolveDynamicField(ctx context.Context, field string, module core.Settings) ([]core.Option, error) {
	if field != SettingEvent {
		return nil, core.WrapError(core.ErrUnrecognizedField,
			fmt.Errorf("webhook: the field name '%s' is not recognised", field))
	}
	return append([]core.Option(nil), events...), nil
}

func (w *Webhook) Send(ctx context.Context, n core.Notification, module, channel core.Settings) error {
	target, err := endpoint(module)
	if err != nil {
		return err
	}

	event := core.ParseChoice(channel.Get(SettingEvent)).Value
	if event == "" {
		event = "alert"
	}

	attrs := n.Attributes
	if attrs == nil {
		attrs = []core.Attribute{}
	}

	payload := map[string]any{
		"event":      event,
		"title":      n.Title,
		"message":    n.Message,
		"attributes": attrs,
		"sent_at":    time.Now().UTC().Format(time.RFC3339),
	}

	return w.post(ctx, target, module.Get(SettingSecret), payload)
}

func endpoint(module core.Settings) (string, error) {
	raw := module.Get(SettingURL)
	if raw == "" {
		return "", core.WrapError(core.ErrConfigMissing, errors.New("webhook: url is required"))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", core.WrapError(core.ErrConfigInvalid, fmt.Errorf("webhook: invalid url %q", raw))
	}
	return u.String(), nil
}

func (w *Webhook) post(ctx context.Context, target, secret string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("webhook: failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("webhook: failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("webhook: request failed: %w", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("webhook: server returned %d", resp.StatusCode))
	}

	return nil
}
