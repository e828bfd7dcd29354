package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.InventoryService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// purchaseBody is the purchase payload. Expiry is a calendar date.
type purchaseBody struct {
	Name        string           `json:"name" validate:"required,notblank,max=200"`
	CategoryID  string           `json:"category_id" validate:"required,max=100"`
	Quantity    float64          `json:"quantity" validate:"gt=0"`
	Unit        string           `json:"unit" validate:"required,max=50"`
	ExpiryDate  *string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Location    *string          `json:"location,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
}

// Purchase records a purchased batch
func (h *BatchHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var body purchaseBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&body); err != nil {
		httputil.Error(w, err)
		return
	}

	req := service.PurchaseRequest{
		Name:        body.Name,
		CategoryID:  body.CategoryID,
		Quantity:    body.Quantity,
		Unit:        body.Unit,
		Price:       body.Price,
		Location:    body.Location,
		Description: body.Description,
		KitchenID:   a.KitchenID,
		CreatedBy:   a.ID,
	}
	if body.ExpiryDate != nil {
		// Format already checked by the datetime tag.
		d, _ := time.Parse(time.DateOnly, *body.ExpiryDate)
		req.ExpiryDate = &d
	}

	res, err := h.service.PurchaseBatch(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// Remove deletes a batch
func (h *BatchHandler) Remove(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.RemoveBatch(r.Context(), a.KitchenID, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ReportWaste moves part of a batch to waste
func (h *BatchHandler) ReportWaste(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ReportWasteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	req.BatchID = chi.URLParam(r, "id")
	req.KitchenID = a.KitchenID
	req.UserID = a.ID
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.service.ReportWaste(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entry)
}

// ListExpiredWaste lists batches the kitchen lost to expiry
func (h *BatchHandler) ListExpiredWaste(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	logs, err := h.service.ListExpiredWaste(r.Context(), a.KitchenID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, logs)
}
