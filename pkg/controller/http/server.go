package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/minato-lab/leavesync/pkg/service/holiday"
	"github.com/minato-lab/leavesync/pkg/service/worker"
	"github.com/minato-lab/leavesync/pkg/usecase"
	"github.com/minato-lab/leavesync/pkg/utils/errutil"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
	"github.com/minato-lab/leavesync/pkg/utils/safe"
)

type Server struct {
	router    *chi.Mux
	uc        *usecase.UseCase
	scheduler *worker.Scheduler
	holidays  holiday.Service
}

type Options func(*Server)

// WithScheduler exposes the scheduler on the control API
func WithScheduler(s *worker.Scheduler) Options {
	return func(srv *Server) {
		srv.scheduler = s
	}
}

// WithHolidayService enables the holiday calendar endpoint
func WithHolidayService(svc holiday.Service) Options {
	return func(srv *Server) {
		srv.holidays = svc
	}
}

func New(uc *usecase.UseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)

	// Upstream callback endpoint - no auth, uses signature verification
	if uc.CallbackConfigured() {
		r.Route("/callback", func(r chi.Router) {
			r.Get("/", s.handleCallbackVerify)
			r.Post("/", s.handleCallbackEvent)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Post("/trigger", s.handleSyncTrigger)
			r.Post("/check", s.handleStatusCheck)
			r.Post("/reset", s.handleCursorReset)
		})

		if s.scheduler != nil {
			r.Route("/scheduler", func(r chi.Router) {
				r.Post("/sync/start", s.handleSyncSchedulerStart)
				r.Post("/sync/stop", s.handleSyncSchedulerStop)
				r.Post("/check/start", s.handleCheckSchedulerStart)
				r.Post("/check/stop", s.handleCheckSchedulerStop)
			})
		}
		r.Get("/approvals/active", s.handleActiveApprovals)
		r.Get("/leave", s.handleLeave)

		if s.holidays != nil {
			r.Get("/holidays/{year}", s.handleHolidays)
		}
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, []byte(`{"status":"ok"}`))
}

// respondJSON marshals v and writes it with status 200
func respondJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, data)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
