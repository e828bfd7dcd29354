package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// JobHandler triggers scheduled jobs on demand
type JobHandler struct {
	scheduler *service.Scheduler
	logger    *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(scheduler *service.Scheduler, log *logger.Logger) *JobHandler {
	return &JobHandler{
		scheduler: scheduler,
		logger:    log,
	}
}

// Run runs a job now. A job that is already running is not started twice.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	a, err := requestActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	name := chi.URLParam(r, "name")
	job, ok := h.scheduler.Job(name)
	if !ok {
		httputil.Error(w, errors.NotFound("job"))
		return
	}

	h.logger.Info().Str("job", name).Str("user_id", a.ID).Msg("manual job run requested")

	// The run outlives a dropped client connection.
	ran, err := job.TryRun(context.WithoutCancel(r.Context()), time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if !ran {
		httputil.Error(w, errors.Conflict("job "+name+" is already running"))
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]any{"job": name, "ran": true})
}
