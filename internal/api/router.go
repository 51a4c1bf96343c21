// Package api exposes the notification pipeline over HTTP: preference
// management, unsubscribe links, event hooks and scheduler operations.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/scheduler"
	"github.com/extrace/notify/internal/service/preferences"
)

// PreferenceService is the preference store surface the handlers use.
type PreferenceService interface {
	GetOrCreate(ctx context.Context, userID string) (*domain.Preferences, error)
	Update(ctx context.Context, userID string, u preferences.Update) (*domain.Preferences, error)
	UnsubscribeAll(ctx context.Context, token string) (*domain.Preferences, error)
	UnsubscribeClass(ctx context.Context, token string, class preferences.Class) (*domain.Preferences, error)
	DeliveryStats(ctx context.Context, userID string) (domain.DeliveryStatus, error)
	ResetBlacklist(ctx context.Context, userID string) (domain.DeliveryStatus, error)
}

// Notifier is the notification engine surface the handlers use.
type Notifier interface {
	OnTransactionCreated(ctx context.Context, transactionID string) error
	CheckBudgetAlert(ctx context.Context, userID, categoryName string) error
	SendWelcomeEmail(ctx context.Context, userID string) error
	GenerateWeeklyReport(ctx context.Context, userID string) error
	GenerateMonthlyReport(ctx context.Context, userID string, month time.Month, year int) error
	SendPersonalizedTips(ctx context.Context, userID string) error
	FlushDigest(ctx context.Context, userID string, freq domain.Frequency) error
}

// JobRunner is the scheduler surface the ops endpoints use.
type JobRunner interface {
	Start()
	Stop()
	Running() bool
	Status() scheduler.Status
	JobNames() []string
	Trigger(ctx context.Context, name string) error
}

// Dispatcher runs fire-and-forget work.
type Dispatcher interface {
	Go(name string, fn func(ctx context.Context) error) string
}

// Deps wires the handlers.
type Deps struct {
	Preferences    PreferenceService
	Notifier       Notifier
	Scheduler      JobRunner
	Dispatcher     Dispatcher
	// JobDispatcher runs manual job triggers. Batches can outlast the
	// per-event timeout, so it is usually untimed. Defaults to Dispatcher.
	JobDispatcher  Dispatcher
	Health         *HealthChecker
	AllowedOrigins []string
	Now            func() time.Time
}

// Handlers holds the dependencies shared by every route.
type Handlers struct {
	prefs      PreferenceService
	notifier   Notifier
	jobs       JobRunner
	dispatcher Dispatcher
	jobRuns    Dispatcher
	now        func() time.Time
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Deps) *chi.Mux {
	h := &Handlers{
		prefs:      d.Preferences,
		notifier:   d.Notifier,
		jobs:       d.Scheduler,
		dispatcher: d.Dispatcher,
		jobRuns:    d.JobDispatcher,
		now:        d.Now,
	}
	if h.jobRuns == nil {
		h.jobRuns = d.Dispatcher
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", userIDHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Health != nil {
		r.Get("/health", d.Health.HandleHealth)
		r.Get("/health/live", d.Health.HandleLiveness)
		r.Get("/health/ready", d.Health.HandleReadiness)
	}

	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

// RegisterRoutes mounts every /api route on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/email", func(r chi.Router) {
		// Token-authenticated: reached from links inside emails.
		r.Post("/unsubscribe", h.UnsubscribeAll)
		r.Post("/unsubscribe/{type}", h.UnsubscribeClass)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/preferences", h.GetPreferences)
			r.Put("/preferences", h.UpdatePreferences)
			r.Get("/stats", h.GetStats)
			r.Post("/reset-blacklist", h.ResetBlacklist)
			r.Post("/test", h.SendTestEmail)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Post("/transactions/{id}", h.TransactionCreated)
		r.With(requireUser).Post("/budget-check", h.BudgetCheck)
	})

	r.Route("/scheduler", func(r chi.Router) {
		r.Get("/status", h.SchedulerStatus)
		r.Post("/start", h.StartScheduler)
		r.Post("/stop", h.StopScheduler)
		r.Post("/jobs/{name}/run", h.RunJob)
	})
}

// NewServer wraps handler in an http.Server with bounded timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
