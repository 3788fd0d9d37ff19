package pushover

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/newthinker/pushrelay/internal/core"
)

// Settings keys
const (
	SettingAPIToken = "api_token"

	SettingUser     = "user"
	SettingDevice   = "device"
	SettingSound    = "sound"
	SettingPriority = "priority"
	SettingRetry    = "retry"
	SettingExpires  = "expires"
)

// Priority levels accepted by the messages API
const (
	PriorityLowest    = -2
	PriorityLow       = -1
	PriorityNormal    = 0
	PriorityHigh      = 1
	PriorityEmergency = 2
)

// Emergency re-delivery bounds, in seconds
const (
	MinRetry  = 30
	MaxExpire = 10800

	DefaultRetry  = 300
	DefaultExpire = MaxExpire
)

// Defaults are substituted for unset emergency timing values
type Defaults struct {
	Retry  int
	Expire int
}

// Validate checks the defaults against the provider bounds
func (d Defaults) Validate() error {
	if d.Retry < MinRetry {
		return fmt.Errorf("default retry must be at least %d seconds, got %d", MinRetry, d.Retry)
	}
	if d.Expire < 1 || d.Expire > MaxExpire {
		return fmt.Errorf("default expire must be between 1 and %d seconds, got %d", MaxExpire, d.Expire)
	}
	return nil
}

// ChannelSettings is the decoded form of a channel's settings map
type ChannelSettings struct {
	User     string
	Device   string
	Sound    core.Choice
	Priority core.Choice

	// Retry and Expire are only set for emergency priority
	Retry  int
	Expire int
}

// PriorityLevel returns the numeric priority
func (cs ChannelSettings) PriorityLevel() int {
	p, _ := strconv.Atoi(cs.Priority.Value)
	return p
}

// IsEmergency reports whether delivery requires acknowledgement
func (cs ChannelSettings) IsEmergency() bool {
	return cs.PriorityLevel() == PriorityEmergency
}

// ParseChannelSettings decodes and validates raw channel settings. Composite
// "value|label" fields are split here once. Unset emergency timings take the
// given defaults; configured ones pass through after bounds checks.
func ParseChannelSettings(raw core.Settings, defaults Defaults) (ChannelSettings, error) {
	cs := ChannelSettings{
		User:     raw.Get(SettingUser),
		Device:   raw.Get(SettingDevice),
		Sound:    core.ParseChoice(raw.Get(SettingSound)),
		Priority: core.ParseChoice(raw.Get(SettingPriority)),
	}

	if cs.User == "" {
		return cs, invalidSettings("user is required")
	}

	if cs.Priority.IsZero() {
		cs.Priority = core.Choice{Value: strconv.Itoa(PriorityNormal)}
	}
	p, err := strconv.Atoi(cs.Priority.Value)
	if err != nil || p < PriorityLowest || p > PriorityEmergency {
		return cs, invalidSettings("priority must be between %d and %d, got %q",
			PriorityLowest, PriorityEmergency, cs.Priority.Value)
	}
	cs.Priority.Value = strconv.Itoa(p)

	if p != PriorityEmergency {
		return cs, nil
	}

	cs.Retry, err = secondsSetting(raw, SettingRetry, defaults.Retry)
	if err != nil {
		return cs, err
	}
	if cs.Retry < MinRetry {
		return cs, invalidSettings("retry must be at least %d seconds, got %d", MinRetry, cs.Retry)
	}

	cs.Expire, err = secondsSetting(raw, SettingExpires, defaults.Expire)
	if err != nil {
		return cs, err
	}
	if cs.Expire < 1 || cs.Expire > MaxExpire {
		return cs, invalidSettings("expires must be between 1 and %d seconds, got %d", MaxExpire, cs.Expire)
	}

	return cs, nil
}

func secondsSetting(raw core.Settings, key string, fallback int) (int, error) {
	v := raw.Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalidSettings("%s must be a whole number of seconds, got %q", key, v)
	}
	return n, nil
}

func invalidSettings(format string, args ...any) error {
	return core.WrapError(core.ErrSettingsInvalid, fmt.Errorf("pushover: "+format, args...))
}

// BuildPayload assembles the form body for the messages endpoint
func BuildPayload(n core.Notification, token string, cs ChannelSettings) url.Values {
	form := url.Values{}
	form.Set("token", token)
	form.Set("user", cs.User)
	form.Set("title", n.Title)
	form.Set("message", ComposeMessage(n))
	form.Set("priority", cs.Priority.Value)

	if !cs.Sound.IsZero() {
		form.Set("sound", cs.Sound.Value)
	}
	if cs.Device != "" {
		form.Set("device", cs.Device)
	}
	if cs.IsEmergency() {
		form.Set("retry", strconv.Itoa(cs.Retry))
		form.Set("expire", strconv.Itoa(cs.Expire))
	}

	return form
}
