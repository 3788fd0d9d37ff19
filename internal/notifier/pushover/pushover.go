// Package pushover implements a notifier for the Pushover messages API
package pushover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/pushrelay/internal/core"
	"github.com/newthinker/pushrelay/internal/notifier"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is the Pushover API root
	DefaultBaseURL = "https://api.pushover.net/1"

	// DefaultTimeout bounds each request to the API
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 64 << 10
)

// Pushover implements the Notifier interface for the Pushover API
type Pushover struct {
	baseURL  string
	client   *http.Client
	defaults Defaults
}

// New creates a new Pushover notifier
func New() *Pushover {
	return &Pushover{
		baseURL:  DefaultBaseURL,
		client:   &http.Client{Timeout: DefaultTimeout},
		defaults: Defaults{Retry: DefaultRetry, Expire: DefaultExpire},
	}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Init(cfg notifier.Config) error {
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		p.client = &http.Client{Timeout: cfg.Timeout}
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: DefaultTimeout}
	}
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	if p.defaults.Retry == 0 {
		p.defaults.Retry = DefaultRetry
	}
	if p.defaults.Expire == 0 {
		p.defaults.Expire = DefaultExpire
	}

	if v, ok, err := intParam(cfg.Params, "default_retry"); err != nil {
		return fmt.Errorf("pushover: %w", err)
	} else if ok {
		p.defaults.Retry = v
	}
	if v, ok, err := intParam(cfg.Params, "default_expire"); err != nil {
		return fmt.Errorf("pushover: %w", err)
	} else if ok {
		p.defaults.Expire = v
	}

	if err := p.defaults.Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("pushover: %w", err))
	}

	return nil
}

func (p *Pushover) ModuleSettingsSchema() core.Schema {
	return core.Schema{
		{
			Key:         SettingAPIToken,
			Label:       "API Token",
			Kind:        core.FieldPassword,
			Description: "Your Pushover application token.",
			Required:    true,
		},
	}
}

func (p *Pushover) ChannelSettingsSchema() core.Schema {
	return core.Schema{
		{
			Key:         SettingUser,
			Label:       "User/Group Key",
			Kind:        core.FieldText,
			Description: "The recipient key, obtained from the Pushover dashboard.",
			Required:    true,
		},
		{
			Key:         SettingDevice,
			Label:       "Device Name (Optional)",
			Kind:        core.FieldText,
			Description: "The recipient's device name. Multiple devices can be separated by a comma or leave blank for all devices.",
		},
		{
			Key:         SettingSound,
			Label:       "Sound",
			Kind:        core.FieldDynamic,
			Description: "Choose the sound for this notification.",
		},
		{
			Key:         SettingPriority,
			Label:       "Priority",
			Kind:        core.FieldDynamic,
			Description: "Choose the priority for this notification. Emergency priority notifications will require acknowledgement.",
		},
		{
			Key:         SettingRetry,
			Label:       "Retry Period",
			Kind:        core.FieldText,
			Description: fmt.Sprintf("Emergency priority only. Defines the number of seconds Pushover will wait between re-delivery attempts of the same notification until it's acknowledged or expires (see Expires setting). The value must be a minimum of %d. Defaults to %d.", MinRetry, DefaultRetry),
		},
		{
			Key:         SettingExpires,
			Label:       "Expires",
			Kind:        core.FieldText,
			Description: fmt.Sprintf("Emergency priority only. Defines the number of seconds Pushover will continue to attempt re-delivery of the same notification before giving up. The value can be a maximum of %d (3 hours). Defaults to %d.", MaxExpire, DefaultExpire),
		},
	}
}

// TestConnection always reports untested: the API offers no way to
// validate an application token without addressing a recipient.
func (p *Pushover) TestConnection(ctx context.Context, module core.Settings) core.ConnectionResult {
	return core.ConnectionResult{
		Status: core.ConnectionUntested,
		Detail: "Pushover cannot validate an application token on its own; it is checked on the first send",
	}
}

// PriorityOptions is the fixed option list of the priority field
func PriorityOptions() []core.Option {
	return []core.Option{
		{ID: strconv.Itoa(PriorityLowest), Name: "Lowest"},
		{ID: strconv.Itoa(PriorityLow), Name: "Low"},
		{ID: strconv.Itoa(PriorityNormal), Name: "Normal"},
		{ID: strconv.Itoa(PriorityHigh), Name: "High"},
		{ID: strconv.Itoa(PriorityEmergency), Name: "Emergency"},
	}
}

func (p *Pushover) ResolveDynamicField(ctx context.Context, field string, module core.Settings) ([]core.Option, error) {
	switch field {
	case SettingSound:
		return p.fetchSounds(ctx, module.Get(SettingAPIToken))
	case SettingPriority:
		return PriorityOptions(), nil
	default:
		return nil, core.WrapError(core.ErrUnrecognizedField,
			fmt.Errorf("pushover: the field name '%s' is not recognised", field))
	}
}

// Send posts one message. A returned nil means the API accepted the
// request, not that the message was delivered.
func (p *Pushover) Send(ctx context.Context, n core.Notification, module, channel core.Settings) error {
	token := module.Get(SettingAPIToken)
	if token == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("pushover: api_token is required"))
	}

	cs, err := ParseChannelSettings(channel, p.defaults)
	if err != nil {
		return err
	}

	return p.post(ctx, BuildPayload(n, token, cs))
}

func (p *Pushover) post(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages.json",
		strings.NewReader(form.Encode()))
	if err != nil {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("pushover: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrTransmission, fmt.Errorf("pushover: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return core.WrapError(core.ErrTransmission, apiError(resp.StatusCode, body))
	}

	// Drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return nil
}

// apiError extracts the "errors" array Pushover returns on rejection
func apiError(status int, body []byte) error {
	var msgs []string
	if gjson.ValidBytes(body) {
		for _, e := range gjson.GetBytes(body, "errors").Array() {
			msgs = append(msgs, e.String())
		}
	}
	if len(msgs) == 0 {
		return fmt.Errorf("pushover: API returned status %d", status)
	}
	return fmt.Errorf("pushover: API returned status %d: %s", status, strings.Join(msgs, "; "))
}

func intParam(params map[string]any, key string) (int, bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		return int(v), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false, fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("%s must be an integer, got %T", key, raw)
	}
}
