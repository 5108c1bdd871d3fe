// Package http exposes the ledger, the alerts monitor and the notification
// inbox as a JSON API, plus the websocket session endpoint.
package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/notify"
	"fintrack/internal/session"
)

// Services are the engine components behind the API.
type Services struct {
	Ledger   *ledger.Ledger
	Notifier *notify.Notifier
	Monitor  *notify.Monitor
	Registry *session.Registry
	// Sessions serves GET /ws; nil disables live sessions.
	Sessions http.Handler
	// Ping checks the entity store for /readyz.
	Ping func(ctx context.Context) error
}

type Server struct {
	http.Server

	ledger   *ledger.Ledger
	notifier *notify.Notifier
	monitor  *notify.Monitor
	registry *session.Registry
	ping     func(ctx context.Context) error

	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter

	started time.Time
	now     func() time.Time
}

func NewServer(addr string, svc Services) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		ledger:           svc.Ledger,
		notifier:         svc.Notifier,
		monitor:          svc.Monitor,
		registry:         svc.Registry,
		ping:             svc.Ping,
		traceMiddleware:  trace.NewMiddleware(),
		securityDetector: security.NewDetector(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		started:          time.Now(),
		now:              time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("POST /api/loans", s.authed(s.handleCreateLoan))
	mux.Handle("GET /api/loans", s.authed(s.handleListLoans))
	mux.Handle("GET /api/loans/{id}", s.authed(s.handleGetLoan))
	mux.Handle("PATCH /api/loans/{id}", s.authed(s.handlePatchLoan))
	mux.Handle("DELETE /api/loans/{id}", s.authed(s.handleDeleteLoan))
	mux.Handle("GET /api/loans/{id}/summary", s.authed(s.handleLoanSummary))
	mux.Handle("GET /api/loans/{id}/payments", s.authed(s.handleListPayments))
	mux.Handle("POST /api/loans/{id}/payments", s.authed(s.handleApplyPayment))
	mux.Handle("DELETE /api/payments/{id}", s.authed(s.handleReversePayment))

	mux.Handle("POST /api/budgets", s.authed(s.handleCreateBudget))
	mux.Handle("GET /api/budgets", s.authed(s.handleListBudgets))
	mux.Handle("POST /api/expenses", s.authed(s.handleRecordExpense))
	mux.Handle("POST /api/incomes", s.authed(s.handleRecordIncome))

	mux.Handle("GET /api/notifications", s.authed(s.handleListNotifications))
	mux.Handle("GET /api/notifications/unread-count", s.authed(s.handleUnreadCount))
	mux.Handle("POST /api/notifications/{id}/read", s.authed(s.handleMarkRead))
	mux.Handle("POST /api/notifications/read-all", s.authed(s.handleMarkAllRead))
	mux.Handle("DELETE /api/notifications/{id}", s.authed(s.handleDeleteNotification))
	mux.Handle("DELETE /api/notifications/read", s.authed(s.handleDeleteRead))
	mux.Handle("POST /api/announcements", s.authed(s.handleAnnounce))

	if svc.Sessions != nil {
		mux.Handle("GET /ws", svc.Sessions)
	}

	s.Handler = s.chain(mux)
	return s
}

// chain wraps the mux: tracing outermost so every log line carries the
// request id, then access logging, suspicious-request rejection, headers and the
// per-user write limit.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.rateLimitKey, rateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = log.AccessLog(h)
	h = log.Middleware(log.ForComponent(log.ComponentHTTP), trace.FromRequest)(h)
	return s.traceMiddleware.Middleware(h)
}

func (s *Server) rateLimitKey(r *http.Request) string {
	if c, ok := callerFromRequest(r); ok {
		return "user:" + c.UserID
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many requests, retry later").Write(w)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller core.Caller)

// authed resolves the caller and tags the request logger with it.
func (s *Server) authed(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromRequest(r)
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		logger := log.FromContext(r.Context()).With(log.FieldUserID, caller.UserID)
		next(w, r.WithContext(log.NewContext(r.Context(), logger)), caller)
	})
}

// Shutdown stops accepting requests and releases the limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.Server.Shutdown(ctx)
}
