package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// Mount registers the inventory API on r. The caller installs the auth
// middleware that attaches the request actor.
func Mount(r chi.Router, svc *service.InventoryService, scheduler *service.Scheduler, log *logger.Logger) {
	batches := NewBatchHandler(svc, log)
	groups := NewGroupHandler(svc, log)
	kitchens := NewKitchenHandler(svc, log)
	notifications := NewNotificationHandler(svc.Notifications(), log)
	jobs := NewJobHandler(scheduler, log)

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batches.Purchase)
			r.Delete("/{id}", batches.Remove)
			r.Post("/{id}/waste", batches.ReportWaste)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groups.List)
			r.Get("/{id}", groups.Get)
			r.Post("/{id}/consume", groups.Consume)
			r.Get("/{id}/consumption", groups.ConsumptionInfo)
			r.Put("/{id}/thresholds", groups.UpdateThresholds)
		})

		r.Get("/waste/expired", batches.ListExpiredWaste)

		r.Route("/kitchens/{id}", func(r chi.Router) {
			r.Get("/alert-settings", kitchens.GetAlertSettings)
			r.Put("/alert-settings", kitchens.UpdateAlertSettings)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.List)
			r.Put("/read-all", notifications.MarkAllRead)
			r.Put("/{id}/read", notifications.MarkRead)
			r.Delete("/{id}", notifications.Delete)
		})

		r.Post("/jobs/{name}/run", jobs.Run)
	})
}
