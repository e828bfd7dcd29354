package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// GroupHandler handles inventory group endpoints
type GroupHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(svc *service.InventoryService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		service: svc,
		logger:  log,
	}
}

// List lists the kitchen's groups with active stock
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	groups, err := h.service.ListGroups(r.Context(), a.KitchenID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, groups)
}

// Get gets a group with its active batches
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.GetGroup(r.Context(), a.KitchenID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Consume takes a quantity from the group, earliest expiry first
func (h *GroupHandler) Consume(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ConsumeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.GroupID = chi.URLParam(r, "id")
	req.KitchenID = a.KitchenID
	req.UserID = a.ID
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.Consume(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// ConsumptionInfo shows the batches a consumption would draw from
func (h *GroupHandler) ConsumptionInfo(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	info, err := h.service.ConsumptionInfo(r.Context(), a.KitchenID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, info)
}

// UpdateThresholds changes the group's alert thresholds
func (h *GroupHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ThresholdsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	g, err := h.service.UpdateGroupThresholds(r.Context(), a.KitchenID, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, g)
}
