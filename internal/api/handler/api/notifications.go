// internal/api/handler/api/notifications.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/newthinker/pushrelay/internal/api/response"
	"github.com/newthinker/pushrelay/internal/app"
	"github.com/newthinker/pushrelay/internal/core"
)

const maxBodyBytes = 1 << 20

// NotificationService is the part of the relay that delivers notifications.
type NotificationService interface {
	Channels() []app.ChannelInfo
	Send(ctx context.Context, channel string, n core.Notification) error
	Broadcast(ctx context.Context, n core.Notification) map[string]error
}

// NotificationRequest is the body accepted by the send endpoints.
type NotificationRequest struct {
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Attributes []core.Attribute `json:"attributes,omitempty"`
}

// DeliveryResult reports the outcome for one channel.
type DeliveryResult struct {
	Channel string                `json:"channel"`
	Status  string                `json:"status"`
	Error   *response.ErrorDetail `json:"error,omitempty"`
}

// NotificationsHandler handles channel listing and delivery.
type NotificationsHandler struct {
	svc NotificationService
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(svc NotificationService) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

// Channels lists configured channels.
func (h *NotificationsHandler) Channels(w http.ResponseWriter, r *http.Request) {
	channels := h.svc.Channels()
	response.JSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    len(channels),
	})
}

// Send delivers a notification to one channel.
func (h *NotificationsHandler) Send(w http.ResponseWriter, r *http.Request) {
	n, ok := decodeNotification(w, r)
	if !ok {
		return
	}

	channel := r.PathValue("channel")
	if err := h.svc.Send(r.Context(), channel, n); err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, DeliveryResult{Channel: channel, Status: "sent"})
}

// Broadcast delivers a notification to every channel. A partial failure
// answers 207 with a per-channel breakdown.
func (h *NotificationsHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	n, ok := decodeNotification(w, r)
	if !ok {
		return
	}

	channels := h.svc.Channels()
	if len(channels) == 0 {
		response.Fail(w, core.WrapError(core.ErrChannelNotFound, errors.New("no channels configured")))
		return
	}

	failures := h.svc.Broadcast(r.Context(), n)

	results := make([]DeliveryResult, 0, len(channels))
	failed := 0
	for _, ch := range channels {
		res := DeliveryResult{Channel: ch.Name, Status: "sent"}
		if err, ok := failures[ch.Name]; ok {
			res.Status = "failed"
			detail := response.Detail(err)
			res.Error = &detail
			failed++
		}
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Channel < results[j].Channel })

	status := http.StatusOK
	switch {
	case failed == len(results):
		status = http.StatusBadGateway
	case failed > 0:
		status = http.StatusMultiStatus
	}

	response.JSON(w, status, map[string]any{
		"results": results,
		"sent":    len(results) - failed,
		"failed":  failed,
	})
}

func decodeNotification(w http.ResponseWriter, r *http.Request) (core.Notification, bool) {
	var req NotificationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, err))
		return core.Notification{}, false
	}

	n := core.Notification{Title: req.Title, Message: req.Message, Attributes: req.Attributes}
	if !n.IsValid() {
		response.Fail(w, core.ErrNotificationEmpty)
		return core.Notification{}, false
	}
	return n, true
}
