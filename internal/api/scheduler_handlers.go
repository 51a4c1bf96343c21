package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/extrace/notify/internal/pkg/httputil"
)

//	GET /api/scheduler/status
func (h *Handlers) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, "", h.jobs.Status())
}

//	POST /api/scheduler/start
func (h *Handlers) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if h.jobs.Running() {
		httputil.OK(w, "Scheduler already running", h.jobs.Status())
		return
	}
	h.jobs.Start()
	httputil.OK(w, "Scheduler started", h.jobs.Status())
}

// StopScheduler blocks until every job loop has exited.
//
//	POST /api/scheduler/stop
func (h *Handlers) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.jobs.Stop()
	httputil.OK(w, "Scheduler stopped", h.jobs.Status())
}

// RunJob fires a job once, out of band. The run happens in the background.
//
//	POST /api/scheduler/jobs/{name}/run
func (h *Handlers) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(h.jobs.JobNames(), name) {
		httputil.NotFound(w, "Unknown job: "+name)
		return
	}
	id := h.jobRuns.Go("job:"+name, func(ctx context.Context) error {
		return h.jobs.Trigger(ctx, name)
	})
	httputil.Accepted(w, "Job "+name+" triggered", taskAccepted{TaskID: id})
}
