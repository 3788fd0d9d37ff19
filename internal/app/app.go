package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/pushrelay/internal/config"
	"github.com/newthinker/pushrelay/internal/core"
	applog "github.com/newthinker/pushrelay/internal/logger"
	"github.com/newthinker/pushrelay/internal/metrics"
	"github.com/newthinker/pushrelay/internal/notifier"
	"github.com/newthinker/pushrelay/internal/notifier/pushover"
	"github.com/newthinker/pushrelay/internal/notifier/telegram"
	"github.com/newthinker/pushrelay/internal/notifier/webhook"
	"go.uber.org/zap"
)

// NotifierInfo describes a registered notifier and its settings schemas
type NotifierInfo struct {
	Name            string      `json:"name"`
	ModuleSettings  core.Schema `json:"module_settings"`
	ChannelSettings core.Schema `json:"channel_settings"`
}

// ChannelInfo describes a configured channel without its settings
type ChannelInfo struct {
	Name     string `json:"name"`
	Notifier string `json:"notifier"`
}

// Channel binds per-recipient settings to a notifier
type Channel struct {
	Notifier string
	Settings core.Settings
}

// App is the relay orchestrator. It owns the module and channel settings
// and hands them to notifiers on every call; notifiers stay stateless.
type App struct {
	logger    *zap.Logger
	metrics   *metrics.Registry
	notifiers *notifier.Registry

	mu       sync.RWMutex
	modules  map[string]core.Settings
	channels map[string]Channel
}

// New creates an empty App instance
func New(logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &App{
		logger:    logger,
		notifiers: notifier.NewRegistry(),
		modules:   make(map[string]core.Settings),
		channels:  make(map[string]Channel),
	}
}

// FromConfig creates an App with every enabled notifier and channel in cfg
func FromConfig(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := New(logger)

	for _, name := range cfg.EnabledNotifiers() {
		nc := cfg.Notifiers[name]

		n, err := newNotifier(name)
		if err != nil {
			return nil, err
		}
		if err := n.Init(notifier.Config{BaseURL: nc.BaseURL, Timeout: nc.Timeout, Params: nc.Params}); err != nil {
			return nil, fmt.Errorf("initializing notifier %s: %w", name, err)
		}
		if err := a.RegisterNotifier(n, nc.Settings); err != nil {
			return nil, err
		}

		fields := []zap.Field{zap.String("notifier", name)}
		for _, f := range n.ModuleSettingsSchema() {
			if f.Kind == core.FieldPassword {
				fields = append(fields, applog.Secret(f.Key, nc.Settings[f.Key]))
			}
		}
		a.logger.Debug("notifier registered", fields...)
	}

	for name, ch := range cfg.Channels {
		if err := a.SetChannel(name, Channel{Notifier: ch.Notifier, Settings: ch.Settings}); err != nil {
			return nil, err
		}
	}

	a.logger.Info("relay configured",
		zap.Strings("notifiers", a.notifiers.Names()),
		zap.Int("channels", len(a.channels)),
	)

	return a, nil
}

func newNotifier(name string) (notifier.Notifier, error) {
	switch name {
	case config.NotifierPushover:
		return pushover.New(), nil
	case config.NotifierWebhook:
		return webhook.New(nil), nil
	case config.NotifierTelegram:
		return telegram.New(), nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier %q", name))
	}
}

// SetMetrics attaches a metrics registry
func (a *App) SetMetrics(m *metrics.Registry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = m
	if m != nil {
		m.SetChannelsConfigured(len(a.channels))
	}
}

// RegisterNotifier adds a notifier with its module settings. Every key must
// be declared by the notifier's module settings schema.
func (a *App) RegisterNotifier(n notifier.Notifier, module map[string]string) error {
	if err := checkKeys(n.ModuleSettingsSchema(), module); err != nil {
		return fmt.Errorf("notifier %s module settings: %w", n.Name(), err)
	}
	if err := a.notifiers.Register(n); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.modules[n.Name()] = copySettings(module)
	return nil
}

// SetChannel adds or replaces a channel. The notifier must be registered
// and every setting key must be declared by its channel settings schema.
func (a *App) SetChannel(name string, ch Channel) error {
	n, err := a.notifiers.Get(ch.Notifier)
	if err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}
	if err := checkKeys(n.ChannelSettingsSchema(), ch.Settings); err != nil {
		return fmt.Errorf("channel %s: %w", name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[name] = Channel{Notifier: ch.Notifier, Settings: copySettings(ch.Settings)}
	if a.metrics != nil {
		a.metrics.SetChannelsConfigured(len(a.channels))
	}
	return nil
}

// Notifiers describes every registered notifier
func (a *App) Notifiers() []NotifierInfo {
	all := a.notifiers.GetAll()
	result := make([]NotifierInfo, 0, len(all))
	for _, n := range all {
		result = append(result, NotifierInfo{
			Name:            n.Name(),
			ModuleSettings:  n.ModuleSettingsSchema(),
			ChannelSettings: n.ChannelSettingsSchema(),
		})
	}
	return result
}

// Notifier describes one registered notifier
func (a *App) Notifier(name string) (NotifierInfo, error) {
	n, err := a.notifiers.Get(name)
	if err != nil {
		return NotifierInfo{}, err
	}
	return NotifierInfo{
		Name:            n.Name(),
		ModuleSettings:  n.ModuleSettingsSchema(),
		ChannelSettings: n.ChannelSettingsSchema(),
	}, nil
}

// Channels lists configured channels ordered by name
func (a *App) Channels() []ChannelInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]ChannelInfo, 0, len(a.channels))
	for name, ch := range a.channels {
		result = append(result, ChannelInfo{Name: name, Notifier: ch.Notifier})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Send delivers n through the notifier bound to channel
func (a *App) Send(ctx context.Context, channel string, n core.Notification) error {
	if !n.IsValid() {
		return core.ErrNotificationEmpty
	}

	a.mu.RLock()
	ch, ok := a.channels[channel]
	module := a.modules[ch.Notifier]
	a.mu.RUnlock()
	if !ok {
		return core.WrapError(core.ErrChannelNotFound, fmt.Errorf("%q", channel))
	}

	nt, err := a.notifiers.Get(ch.Notifier)
	if err != nil {
		return err
	}

	start := time.Now()
	err = nt.Send(ctx, n, module, ch.Settings)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		a.logger.Error("notification failed",
			zap.String("request_id", metrics.RequestID(ctx)),
			zap.String("channel", channel),
			zap.String("notifier", ch.Notifier),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	} else {
		a.logger.Info("notification sent",
			zap.String("request_id", metrics.RequestID(ctx)),
			zap.String("channel", channel),
			zap.String("notifier", ch.Notifier),
			zap.Int("attributes", len(n.Attributes)),
			zap.Duration("duration", duration),
		)
	}
	if m := a.metricsRegistry(); m != nil {
		m.RecordNotification(ch.Notifier, channel, status, duration.Seconds())
	}

	return err
}

// Broadcast sends n to every channel in name order. The result maps
// failed channels to their error.
func (a *App) Broadcast(ctx context.Context, n core.Notification) map[string]error {
	failures := make(map[string]error)
	for _, ch := range a.Channels() {
		if err := ctx.Err(); err != nil {
			failures[ch.Name] = core.WrapError(core.ErrTransmission, err)
			continue
		}
		if err := a.Send(ctx, ch.Name, n); err != nil {
			failures[ch.Name] = err
		}
	}
	return failures
}

// ResolveField returns the options of a dynamic field of a notifier
func (a *App) ResolveField(ctx context.Context, notifierName, field string) ([]core.Option, error) {
	nt, err := a.notifiers.Get(notifierName)
	if err != nil {
		return nil, err
	}

	options, err := nt.ResolveDynamicField(ctx, field, a.moduleSettings(notifierName))

	status, label := "success", field
	if err != nil {
		status = "error"
		if errors.Is(err, core.ErrUnrecognizedField) {
			label = "unknown"
		}
		a.logger.Warn("field lookup failed",
			zap.String("request_id", metrics.RequestID(ctx)),
			zap.String("notifier", notifierName),
			zap.String("field", field),
			zap.Error(err),
		)
	}
	if m := a.metricsRegistry(); m != nil {
		m.RecordFieldLookup(notifierName, label, status)
	}

	return options, err
}

// TestConnection runs the notifier's connectivity check on its module settings
func (a *App) TestConnection(ctx context.Context, notifierName string) (core.ConnectionResult, error) {
	nt, err := a.notifiers.Get(notifierName)
	if err != nil {
		return core.ConnectionResult{}, err
	}

	result := nt.TestConnection(ctx, a.moduleSettings(notifierName))
	a.logger.Info("connection test",
		zap.String("notifier", notifierName),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (a *App) moduleSettings(name string) core.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.modules[name]
}

func (a *App) metricsRegistry() *metrics.Registry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

func copySettings(in map[string]string) core.Settings {
	out := make(core.Settings, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// checkKeys rejects setting keys the schema does not declare
func checkKeys(schema core.Schema, settings map[string]string) error {
	var unknown []string
	for key := range settings {
		if _, ok := schema.Lookup(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown settings %s, allowed: %s",
		strings.Join(unknown, ", "), strings.Join(schema.Keys(), ", ")))
}
