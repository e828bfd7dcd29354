package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// NotificationHandler handles the caller's notification feed
type NotificationHandler struct {
	notifier *service.Notifier
	logger   *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifier *service.Notifier, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		logger:   log,
	}
}

// List lists the caller's notifications, newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.notifier.ListForUser(r.Context(), a.KitchenID, a.ID, unreadOnly, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, list)
}

// MarkRead marks one notification read for the caller
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.notifier.MarkRead(r.Context(), a.KitchenID, chi.URLParam(r, "id"), a.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// MarkAllRead marks every kitchen notification read for the caller
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	n, err := h.notifier.MarkAllRead(r.Context(), a.KitchenID, a.ID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"marked": n})
}

// Delete hides a notification from the caller
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.notifier.Delete(r.Context(), a.KitchenID, chi.URLParam(r, "id"), a.ID); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
