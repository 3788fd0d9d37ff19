// Package telegram implements a notifier for the Telegram Bot API
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newthinker/pushrelay/internal/core"
	"github.com/newthinker/pushrelay/internal/notifier"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the Bot API root
const DefaultBaseURL = "https://api.telegram.org"

// Settings keys
const (
	SettingBotToken  = "bot_token"
	SettingChatID    = "chat_id"
	SettingParseMode = "parse_mode"
)

// Parse modes
const (
	ParseModeNone = "none"
	ParseModeHTML = "HTML"
)

const maxResponseBytes = 64 << 10

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	baseURL string
	client  *http.Client
}

// New creates a new Telegram notifier
func New() *Telegram {
	return &Telegram{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if cfg.BaseURL != "" {
		t.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if t.baseURL == "" {
		t.baseURL = DefaultBaseURL
	}
	if cfg.Timeout > 0 {
		t.client = &http.Client{Timeout: cfg.Timeout}
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}
	return nil
}

func (t *Telegram) ModuleSettingsSchema() core.Schema {
	return core.Schema{
		{Key: SettingBotToken, Label: "Bot Token", Kind: core.FieldPassword, Description: "The token BotFather issued for your bot.", Required: true},
	}
}

func (t *Telegram) ChannelSettingsSchema() core.Schema {
	return core.Schema{
		{Key: SettingChatID, Label: "Chat ID", Kind: core.FieldText, Description: "The chat, group or channel to post to, e.g. -1001234567890 or @mychannel.", Required: true},
		{Key: SettingParseMode, Label: "Formatting", Kind: core.FieldDynamic, Description: "Plain text, or HTML with a bold title."},
	}
}

// TestConnection calls getMe, which validates the token without posting
// anything.
func (t *Telegram) TestConnection(ctx context.Context, module core.Settings) core.ConnectionResult {
	token := module.Get(SettingBotToken)
	if token == "" {
		return core.ConnectionResult{Status: core.ConnectionFailed, Detail: "bot_token is not set"}
	}

	body, err := t.call(ctx, token, "getMe", nil)
	if err != nil {
		return core.ConnectionResult{Status: core.ConnectionFailed, Detail: err.Error()}
	}
	return core.ConnectionResult{
		Status: core.ConnectionOK,
		Detail: "authenticated as @" + gjson.GetBytes(body, "result.username").String(),
	}
}

func (t *Telegram) ResolveDynamicField(ctx context.Context, field string, module core.Settings) ([]core.Option, error) {
	if field != SettingParseMode {
		return nil, core.WrapError(core.ErrUnrecognizedField,
			fmt.Errorf("telegram: the field name '%s' is not recognised", field))
	}
	return []core.Option{
		{ID: ParseModeNone, Name: "Plain text"},
		{ID: ParseModeHTML, Name: "HTML"},
	}, nil
}

func (t *Telegram) Send(ctx context.Context, n core.Notification, module, channel core.Settings) error {
	token := module.Get(SettingBotToken)
	if token == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("telegram: bot_token is required"))
	}
	chatID := core.ParseChoice(channel.Get(SettingChatID)).Value
	if chatID == "" {
		return core.WrapError(core.ErrSettingsInvalid, errors.New("telegram: chat_id is required"))
	}

	mode := core.ParseChoice(channel.Get(SettingParseMode)).Value
	switch mode {
	case "", ParseModeNone:
		mode = ""
	case ParseModeHTML:
	default:
		return core.WrapError(core.ErrSettingsInvalid, fmt.Errorf("telegram: unsupported parse_mode %q", mode))
	}

	payload := map[string]any{
		"chat_id": chatID,
		"text":    FormatMessage(n, mode == ParseModeHTML),
	}
	if mode != "" {
		payload["parse_mode"] = mode
	}

	if _, err := t.call(ctx, token, "sendMessage", payload); err != nil {
		return core.WrapError(core.ErrTransmission, err)
	}
	return nil
}

// FormatMessage renders the title on its own line, then the message and
// one "label: value" line per attribute. With asHTML the title is bold and
// all text is escaped.
func FormatMessage(n core.Notification, asHTML bool) string {
	esc := func(s string) string { return s }
	if asHTML {
		esc = html.EscapeString
	}

	var sections []string
	if n.Title != "" {
		if asHTML {
			sections = append(sections, "<b>"+esc(n.Title)+"</b>")
		} else {
			sections = append(sections, n.Title)
		}
	}
	if n.Message != "" {
		sections = append(sections, esc(n.Message))
	}
	if len(n.Attributes) > 0 {
		lines := make([]string, len(n.Attributes))
		for i, a := range n.Attributes {
			lines[i] = esc(a.Label) + ": " + esc(a.Value)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// call invokes a Bot API method and returns the response body. The token
// is part of the URL path and is kept out of returned errors.
func (t *Telegram) call(ctx context.Context, token, method string, payload any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.baseURL, token, method)

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("telegram: failed to marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("telegram: failed to create request: %w", redactURL(err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s failed: %w", method, redactURL(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("telegram: reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "ok").Bool() {
		desc := gjson.GetBytes(body, "description").String()
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("telegram: API error (status %d): %s", resp.StatusCode, desc)
	}

	return body, nil
}

func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
