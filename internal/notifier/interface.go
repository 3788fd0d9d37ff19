package notifier

import (
	"context"
	"time"

	"github.com/newthinker/pushrelay/internal/core"
)

// Config holds notifier transport configuration
type Config struct {
	BaseURL string         `mapstructure:"base_url"`
	Timeout time.Duration  `mapstructure:"timeout"`
	Params  map[string]any `mapstructure:"params"`
}

// Notifier defines the contract every outbound notification provider implements.
// Implementations hold no per-call state and are safe for concurrent use.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init applies transport configuration
	Init(cfg Config) error

	// ModuleSettingsSchema declares the integration-wide settings
	ModuleSettingsSchema() core.Schema

	// ChannelSettingsSchema declares the per-channel settings
	ChannelSettingsSchema() core.Schema

	// TestConnection checks module settings before they are saved.
	// It never fails; providers that cannot verify report core.ConnectionUntested.
	TestConnection(ctx context.Context, module core.Settings) core.ConnectionResult

	// ResolveDynamicField returns the selectable options of a dynamic field
	ResolveDynamicField(ctx context.Context, field string, module core.Settings) ([]core.Option, error)

	// Send delivers a single notification
	Send(ctx context.Context, n core.Notification, module, channel core.Settings) error
}
