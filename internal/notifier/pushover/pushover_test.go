package pushover

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/newthinker/pushrelay/internal/core"
	"github.com/newthinker/pushrelay/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const soundsResponse = `{
  "sounds": {
    "pushover": "Pushover (default)",
    "bike": "Bike",
    "cosmic": "Cosmic",
    "alien": "Alien Alarm (long)",
    "none": "None (silent)"
  },
  "status": 1,
  "request": "e460545a-7d4f-4d2b-9e2b-1d3c6a4d1b7f"
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Pushover {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := New()
	require.NoError(t, p.Init(notifier.Config{BaseURL: server.URL, Timeout: 5 * time.Second}))
	return p
}

func setupHTTPMock(t *testing.T, p *Pushover) {
	t.Helper()
	httpmock.ActivateNonDefault(p.client)
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestPushover_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Pushover)(nil)
}

func TestPushover_Name(t *testing.T) {
	assert.Equal(t, "pushover", New().Name())
}

func TestPushover_Init(t *testing.T) {
	p := &Pushover{}
	err := p.Init(notifier.Config{
		BaseURL: "http://localhost:9999/1/",
		Timeout: 3 * time.Second,
		Params: map[string]any{
			"default_retry":  "120",
			"default_expire": 7200,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/1", p.baseURL)
	assert.Equal(t, 3*time.Second, p.client.Timeout)
	assert.Equal(t, Defaults{Retry: 120, Expire: 7200}, p.defaults)
}

func TestPushover_Init_Defaults(t *testing.T) {
	p := &Pushover{}
	require.NoError(t, p.Init(notifier.Config{}))

	assert.Equal(t, DefaultBaseURL, p.baseURL)
	assert.Equal(t, DefaultTimeout, p.client.Timeout)
	assert.Equal(t, Defaults{Retry: DefaultRetry, Expire: DefaultExpire}, p.defaults)
}

func TestPushover_Init_InvalidDefaults(t *testing.T) {
	p := New()
	err := p.Init(notifier.Config{Params: map[string]any{"default_expire": 36000}})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	p = New()
	err = p.Init(notifier.Config{Params: map[string]any{"default_retry": "soon"}})
	assert.Error(t, err)
}

func TestPushover_Schemas(t *testing.T) {
	p := New()

	module := p.ModuleSettingsSchema()
	assert.Equal(t, []string{"api_token"}, module.Keys())
	assert.Equal(t, core.FieldPassword, module[0].Kind)

	channel := p.ChannelSettingsSchema()
	assert.Equal(t, []string{"user", "device", "sound", "priority", "retry", "expires"}, channel.Keys())

	user, _ := channel.Lookup("user")
	assert.True(t, user.Required)
	sound, _ := channel.Lookup("sound")
	assert.Equal(t, core.FieldDynamic, sound.Kind)
	priority, _ := channel.Lookup("priority")
	assert.Equal(t, core.FieldDynamic, priority.Kind)
	retry, _ := channel.Lookup("retry")
	assert.Contains(t, retry.Description, "minimum of 30")
	expires, _ := channel.Lookup("expires")
	assert.Contains(t, expires.Description, "maximum of 10800")
}

func TestPushover_TestConnection_Untested(t *testing.T) {
	result := New().TestConnection(context.Background(), core.Settings{"api_token": "tok"})

	assert.Equal(t, core.ConnectionUntested, result.Status)
	assert.NotEmpty(t, result.Detail)
}

func TestPushover_ResolvePriority(t *testing.T) {
	want := []core.Option{
		{ID: "-2", Name: "Lowest"},
		{ID: "-1", Name: "Low"},
		{ID: "0", Name: "Normal"},
		{ID: "1", Name: "High"},
		{ID: "2", Name: "Emergency"},
	}

	p := New()
	setupHTTPMock(t, p)

	for _, settings := range []core.Settings{nil, {}, {"api_token": "tok"}, {"api_token": "", "x": "y"}} {
		got, err := p.ResolveDynamicField(context.Background(), "priority", settings)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	assert.Zero(t, httpmock.GetTotalCallCount(), "priority must not hit the network")
}

func TestPushover_ResolveUnknownField(t *testing.T) {
	p := New()
	for _, field := range []string{"bogus", "", "user", "Sound"} {
		_, err := p.ResolveDynamicField(context.Background(), field, core.Settings{"api_token": "tok"})
		assert.ErrorIs(t, err, core.ErrUnrecognizedField, "field %q", field)
	}
}

func TestPushover_ResolveSound(t *testing.T) {
	var gotToken, gotPath string
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(soundsResponse))
	})

	options, err := p.ResolveDynamicField(context.Background(), "sound", core.Settings{"api_token": "app-token"})
	require.NoError(t, err)

	assert.Equal(t, "/sounds.json", gotPath)
	assert.Equal(t, "app-token", gotToken)
	assert.Equal(t, []core.Option{
		{ID: "pushover", Name: "Pushover (default)"},
		{ID: "bike", Name: "Bike"},
		{ID: "cosmic", Name: "Cosmic"},
		{ID: "alien", Name: "Alien Alarm (long)"},
		{ID: "none", Name: "None (silent)"},
	}, options)
}

func TestPushover_ResolveSound_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"invalid token", http.StatusBadRequest, `{"token":"invalid","errors":["application token is invalid"],"status":0}`},
		{"server error", http.StatusInternalServerError, `oops`},
		{"malformed json", http.StatusOK, `{"sounds": {`},
		{"missing sounds", http.StatusOK, `{"status":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			options, err := p.ResolveDynamicField(context.Background(), "sound", core.Settings{"api_token": "tok"})
			assert.Nil(t, options)
			assert.ErrorIs(t, err, core.ErrRemoteLookup)
		})
	}
}

func TestPushover_ResolveSound_InvalidTokenMessage(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"token":"invalid","errors":["application token is invalid"],"status":0}`))
	})

	_, err := p.ResolveDynamicField(context.Background(), "sound", core.Settings{"api_token": "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application token is invalid")
}

func TestPushover_ResolveSound_MissingToken(t *testing.T) {
	p := New()
	setupHTTPMock(t, p)

	_, err := p.ResolveDynamicField(context.Background(), "sound", core.Settings{})
	assert.ErrorIs(t, err, core.ErrRemoteLookup)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestPushover_ResolveSound_TransportFailureRedactsToken(t *testing.T) {
	p := New()
	setupHTTPMock(t, p)
	httpmock.RegisterResponder(http.MethodGet, DefaultBaseURL+"/sounds.json",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := p.ResolveDynamicField(context.Background(), "sound", core.Settings{"api_token": "secret-token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRemoteLookup)
	assert.NotContains(t, err.Error(), "secret-token")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestPushover_Send_DeterministicPayload(t *testing.T) {
	var calls atomic.Int32
	var gotForm url.Values
	var gotMethod, gotPath, gotContentType string

	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"status":1,"request":"647d2300-702c-4b38-8b2f-d56326ae460b"}`))
	})

	n := core.Notification{
		Title:      "Invoice Overdue",
		Message:    "Please pay.",
		Attributes: []core.Attribute{{Label: "Invoice", Value: "123"}},
	}
	module := core.Settings{"api_token": "app-token"}
	channel := core.Settings{
		"user":     "user-key",
		"device":   "",
		"sound":    "cosmic|Cosmic",
		"priority": "0|Normal",
	}

	err := p.Send(context.Background(), n, module, channel)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/messages.json", gotPath)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, url.Values{
		"token":    {"app-token"},
		"user":     {"user-key"},
		"title":    {"Invoice Overdue"},
		"message":  {"Please pay.\n\nInvoice: 123"},
		"priority": {"0"},
		"sound":    {"cosmic"},
	}, gotForm)
}

func TestPushover_Send_Emergency(t *testing.T) {
	var gotForm url.Values
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"status":1,"receipt":"rLqVuqTRh62UzxtmqiaLzQmVcPgiCy"}`))
	})

	err := p.Send(context.Background(),
		core.Notification{Title: "Server down", Message: "db01 unreachable"},
		core.Settings{"api_token": "tok"},
		core.Settings{"user": "u", "priority": "2|Emergency", "device": "phone,tablet", "retry": "60"},
	)
	require.NoError(t, err)

	assert.Equal(t, "2", gotForm.Get("priority"))
	assert.Equal(t, "60", gotForm.Get("retry"))
	assert.Equal(t, "10800", gotForm.Get("expire"))
	assert.Equal(t, "phone,tablet", gotForm.Get("device"))
}

func TestPushover_Send_RejectedByAPI(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"user":"invalid","errors":["user identifier is invalid"],"status":0}`))
	})

	err := p.Send(context.Background(),
		core.Notification{Title: "t", Message: "m"},
		core.Settings{"api_token": "tok"},
		core.Settings{"user": "bad"},
	)
	assert.ErrorIs(t, err, core.ErrTransmission)
	assert.Contains(t, err.Error(), "user identifier is invalid")
}

func TestPushover_Send_TransportFailure(t *testing.T) {
	p := New()
	setupHTTPMock(t, p)
	httpmock.RegisterResponder(http.MethodPost, DefaultBaseURL+"/messages.json",
		httpmock.NewErrorResponder(errors.New("tls: handshake failure")))

	err := p.Send(context.Background(),
		core.Notification{Title: "t", Message: "m"},
		core.Settings{"api_token": "tok"},
		core.Settings{"user": "u"},
	)

	assert.ErrorIs(t, err, core.ErrTransmission)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "exactly one request, no retry")
}

func TestPushover_Send_InvalidSettingsSendsNothing(t *testing.T) {
	p := New()
	setupHTTPMock(t, p)

	tests := []struct {
		name    string
		module  core.Settings
		channel core.Settings
		want    error
	}{
		{"missing token", core.Settings{}, core.Settings{"user": "u"}, core.ErrConfigMissing},
		{"missing user", core.Settings{"api_token": "tok"}, core.Settings{}, core.ErrSettingsInvalid},
		{"retry too short", core.Settings{"api_token": "tok"},
			core.Settings{"user": "u", "priority": "2|Emergency", "retry": "10"}, core.ErrSettingsInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Send(context.Background(), core.Notification{Title: "t"}, tt.module, tt.channel)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestPushover_Send_ContextCancelled(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Send(ctx, core.Notification{Title: "t"}, core.Settings{"api_token": "tok"}, core.Settings{"user": "u"})
	assert.ErrorIs(t, err, core.ErrTransmission)
	assert.ErrorIs(t, err, context.Canceled)
}
