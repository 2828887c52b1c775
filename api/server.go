/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RealIP:     Client address from proxy headers
  2. RequestID:  Unique ID per request for tracing
  3. Logger:     One zerolog line per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /health               Liveness and database check
  /api/sheets/*         Punch export processing
  /api/attendance/*     Attendance records and export
  /api/employees/*      Roster, balances, permissions
  /api/missions         Mission entry
  /api/leave/*          Accrual, reset, request events
  /api/rules            Leave rules
  /api/holidays/*       Holiday calendar
  /api/audit            Batch diagnostics

SECURITY NOTE:
  No authentication middleware. The service is expected to run behind the
  host HR system, which owns users and permissions.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Request logging and panic recovery
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowOrigins is used when no origins are configured.
var DefaultAllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowOrigins []string) *chi.Mux {
	if len(allowOrigins) == 0 {
		allowOrigins = DefaultAllowOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Log))
	r.Use(Recoverer(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Sheet routes
		r.Route("/sheets", func(r chi.Router) {
			r.Post("/", h.ProcessSheet)
			r.Post("/upload", h.UploadSheet)
			r.Get("/{id}", h.GetSheet)
		})

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Get("/export", h.ExportAttendance)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Delete("/{id}", h.DeleteEmployee)
			r.Get("/{id}/balances/{year}", h.GetBalance)
			r.Get("/{id}/permissions", h.GetPermissions)
		})

		r.Post("/missions", h.CreateMission)

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Post("/accrue", h.Accrue)
			r.Post("/reset-transferred", h.ResetTransferred)
			r.Get("/balances", h.ListBalances)
			r.Post("/requests/saved", h.LeaveRequestSaved)
			r.Post("/requests/deleted", h.LeaveRequestDeleted)
			r.Post("/types", h.SaveLeaveType)
		})

		// Rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRules)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Get("/audit", h.ListAudit)
	})

	return r
}
