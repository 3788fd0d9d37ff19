// internal/api/handler/api/notifiers_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/newthinker/pushrelay/internal/api/response"
	"github.com/newthinker/pushrelay/internal/app"
	"github.com/newthinker/pushrelay/internal/core"
)

// fakeRelay implements both service interfaces.
type fakeRelay struct {
	options  []core.Option
	fieldErr error
	sendErr  error
	failures map[string]error
	channels []app.ChannelInfo
	sent     []core.Notification
}

func (f *fakeRelay) Notifiers() []app.NotifierInfo {
	return []app.NotifierInfo{{Name: "pushover", ModuleSettings: core.Schema{{Key: "api_token"}}}}
}

func (f *fakeRelay) Notifier(name string) (app.NotifierInfo, error) {
	if name != "pushover" {
		return app.NotifierInfo{}, core.ErrNotifierNotFound
	}
	return f.Notifiers()[0], nil
}

func (f *fakeRelay) ResolveField(ctx context.Context, notifier, field string) ([]core.Option, error) {
	if _, err := f.Notifier(notifier); err != nil {
		return nil, err
	}
	return f.options, f.fieldErr
}

func (f *fakeRelay) TestConnection(ctx context.Context, notifier string) (core.ConnectionResult, error) {
	if _, err := f.Notifier(notifier); err != nil {
		return core.ConnectionResult{}, err
	}
	return core.ConnectionResult{Status: core.ConnectionUntested}, nil
}

func (f *fakeRelay) Channels() []app.ChannelInfo { return f.channels }

func (f *fakeRelay) Send(ctx context.Context, channel string, n core.Notification) error {
	f.sent = append(f.sent, n)
	return f.sendErr
}

func (f *fakeRelay) Broadcast(ctx context.Context, n core.Notification) map[string]error {
	f.sent = append(f.sent, n)
	if f.failures == nil {
		return map[string]error{}
	}
	return f.failures
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorDetail {
	t.Helper()
	var resp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return resp.Error
}

func TestNotifiersHandler_List(t *testing.T) {
	handler := NewNotifiersHandler(&fakeRelay{})

	req := httptest.NewRequest("GET", "/api/v1/notifiers", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	data := resp.Data.(map[string]any)
	notifiers := data["notifiers"].([]any)
	if len(notifiers) != 1 {
		t.Fatalf("expected 1 notifier, got %d", len(notifiers))
	}
	if name := notifiers[0].(map[string]any)["name"]; name != "pushover" {
		t.Errorf("expected pushover, got %v", name)
	}
}

func TestNotifiersHandler_GetUnknown(t *testing.T) {
	handler := NewNotifiersHandler(&fakeRelay{})

	req := httptest.NewRequest("GET", "/api/v1/notifiers/slack", nil)
	req.SetPathValue("name", "slack")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestNotifiersHandler_Field(t *testing.T) {
	handler := NewNotifiersHandler(&fakeRelay{
		options: []core.Option{{ID: "pushover", Name: "Pushover (default)"}, {ID: "bike", Name: "Bike"}},
	})

	req := httptest.NewRequest("GET", "/api/v1/notifiers/pushover/fields/sound", nil)
	req.SetPathValue("name", "pushover")
	req.SetPathValue("field", "sound")
	w := httptest.NewRecorder()

	handler.Field(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp response.SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	options := resp.Data.(map[string]any)["options"].([]any)
	if len(options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(options))
	}
	first := options[0].(map[string]any)
	if first["id"] != "pushover" || first["name"] != "Pushover (default)" {
		t.Errorf("unexpected first option: %v", first)
	}
}

func TestNotifiersHandler_FieldErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"unrecognized", core.WrapError(core.ErrUnrecognizedField, nil), http.StatusBadRequest, "UNRECOGNIZED_FIELD"},
		{"remote lookup", core.ErrRemoteLookup, http.StatusBadGateway, "REMOTE_LOOKUP_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewNotifiersHandler(&fakeRelay{fieldErr: tt.err})

			req := httptest.NewRequest("GET", "/api/v1/notifiers/pushover/fields/x", nil)
			req.SetPathValue("name", "pushover")
			req.SetPathValue("field", "x")
			w := httptest.NewRecorder()

			handler.Field(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if got := decodeError(t, w).Code; got != tt.wantErr {
				t.Errorf("expected %s, got %s", tt.wantErr, got)
			}
		})
	}
}

func TestNotifiersHandler_Test(t *testing.T) {
	handler := NewNotifiersHandler(&fakeRelay{})

	req := httptest.NewRequest("POST", "/api/v1/notifiers/pushover/test", nil)
	req.SetPathValue("name", "pushover")
	w := httptest.NewRecorder()

	handler.Test(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"untested"`) {
		t.Errorf("expected untested status, got %s", w.Body.String())
	}
}
