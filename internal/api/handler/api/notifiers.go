// internal/api/handler/api/notifiers.go
package api

import (
	"context"
	"net/http"

	"github.com/newthinker/pushrelay/internal/api/response"
	"github.com/newthinker/pushrelay/internal/app"
	"github.com/newthinker/pushrelay/internal/core"
)

// NotifierService is the part of the relay the notifier endpoints need.
type NotifierService interface {
	Notifiers() []app.NotifierInfo
	Notifier(name string) (app.NotifierInfo, error)
	ResolveField(ctx context.Context, notifier, field string) ([]core.Option, error)
	TestConnection(ctx context.Context, notifier string) (core.ConnectionResult, error)
}

// NotifiersHandler handles notifier metadata, dynamic fields and checks.
type NotifiersHandler struct {
	svc NotifierService
}

// NewNotifiersHandler creates a new notifiers handler.
func NewNotifiersHandler(svc NotifierService) *NotifiersHandler {
	return &NotifiersHandler{svc: svc}
}

// List returns every registered notifier with its settings schemas.
func (h *NotifiersHandler) List(w http.ResponseWriter, r *http.Request) {
	notifiers := h.svc.Notifiers()
	response.JSON(w, http.StatusOK, map[string]any{
		"notifiers": notifiers,
		"total":     len(notifiers),
	})
}

// Get returns one notifier with its settings schemas.
func (h *NotifiersHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Notifier(r.PathValue("name"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, info)
}

// Field returns the options of a dynamic field.
func (h *NotifiersHandler) Field(w http.ResponseWriter, r *http.Request) {
	name, field := r.PathValue("name"), r.PathValue("field")

	options, err := h.svc.ResolveField(r.Context(), name, field)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"notifier": name,
		"field":    field,
		"options":  options,
	})
}

// Test runs the notifier's connection check.
func (h *NotifiersHandler) Test(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.TestConnection(r.Context(), r.PathValue("name"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}
