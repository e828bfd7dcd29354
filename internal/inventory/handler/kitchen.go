package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/actor"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// KitchenHandler handles kitchen alert settings
type KitchenHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewKitchenHandler creates a new kitchen handler
func NewKitchenHandler(svc *service.InventoryService, log *logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		service: svc,
		logger:  log,
	}
}

// ownKitchen returns the kitchen in the URL if it is the caller's kitchen
func ownKitchen(r *http.Request) (*actor.Actor, string, error) {
	a, err := requestActor(r)
	if err != nil {
		return nil, "", err
	}
	id := chi.URLParam(r, "id")
	if id != a.KitchenID {
		return nil, "", errors.Forbidden("not a member of this kitchen")
	}
	return a, id, nil
}

// GetAlertSettings returns the kitchen's alert schedule
func (h *KitchenHandler) GetAlertSettings(w http.ResponseWriter, r *http.Request) {
	_, kitchenID, err := ownKitchen(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	k, err := h.service.GetAlertSettings(r.Context(), kitchenID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, k)
}

// UpdateAlertSettings sets the kitchen's alert schedule
func (h *KitchenHandler) UpdateAlertSettings(w http.ResponseWriter, r *http.Request) {
	a, kitchenID, err := ownKitchen(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.AlertSettingsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.KitchenID = kitchenID
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	k, err := h.service.UpdateAlertSettings(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("kitchen_id", kitchenID).Str("user_id", a.ID).Msg("kitchen alert settings changed")
	httputil.JSON(w, http.StatusOK, k)
}
