package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/exchange"
)

// RequestIDHeader carries the id of a request through logs and responses
const RequestIDHeader = "X-Request-ID"

// HealthCheck reports a problem with a dependency
type HealthCheck func(ctx context.Context) error

// Server dependencies for HTTP Server functions
type Server struct {
	Service exchange.Service
	router  http.ServeMux

	target         updater.Currency
	logger         log.Logger
	requestTimeout time.Duration
	checks         []healthCheck
	metrics        http.Handler
	instrument     Middleware
}

type healthCheck struct {
	name     string
	critical bool
	check    HealthCheck
}

// Middleware wraps the handler serving route
type Middleware func(route string, h http.Handler) http.Handler

// Option configures a Server
type Option func(*Server)

// WithLogger logs failed requests
func WithLogger(logger log.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRequestTimeout bounds the time spent on one rates request
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithHealthCheck adds a named check to /health. A failing critical check makes the service
// unhealthy (503); a failing non-critical check only marks it degraded (200).
func WithHealthCheck(name string, check HealthCheck, critical bool) Option {
	return func(s *Server) {
		s.checks = append(s.checks, healthCheck{name: name, critical: critical, check: check})
	}
}

// WithInstrumentation wraps every route, e.g. with request metrics
func WithInstrumentation(m Middleware) Option {
	return func(s *Server) { s.instrument = m }
}

// WithMetrics serves h on /metrics
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer serves rates against target unless a request names another one
func NewServer(s exchange.Service, target updater.Currency, options ...Option) *Server {
	server := &Server{
		Service: s,
		router:  http.ServeMux{},
		target:  target,
		logger:  log.NewNopLogger(),
	}
	for _, option := range options {
		option(server)
	}
	server.routes()
	return server
}

func (s *Server) routes() {
	s.handle("/api/exchange-rates", s.exchangeRates())
	s.handle("/health", s.health())
	if s.metrics != nil {
		s.handle("/metrics", s.metrics)
	}
}

func (s *Server) handle(route string, h http.Handler) {
	if s.instrument != nil {
		h = s.instrument(route, h)
	}
	s.router.Handle(route, h)
}

func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
		r.Header.Set(RequestIDHeader, id)
	}
	rw.Header().Set(RequestIDHeader, id)
	s.router.ServeHTTP(rw, r)
}

// exchangeRates produces HTTP handler for rate lookups
func (s *Server) exchangeRates() http.HandlerFunc {

	// rate for marshalling JSON responses to return to clients
	type rate struct {
		SourceCurrency updater.Currency `json:"sourceCurrency"`
		TargetCurrency updater.Currency `json:"targetCurrency"`
		Value          json.Number      `json:"value"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.Header().Set("Allow", http.MethodGet)
			writeError(rw, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		query := r.URL.Query()
		currencies, err := updater.ParseCurrencies(strings.Join(query["currencyCodes"], ","))
		if err != nil {
			writeError(rw, http.StatusBadRequest, "currencyCodes must list at least one currency code")
			return
		}

		target := s.target
		if t := query.Get("target"); t != "" {
			if target, err = updater.NewCurrency(t); err != nil {
				writeError(rw, http.StatusBadRequest, "invalid target currency")
				return
			}
		}

		ctx := r.Context()
		if s.requestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
			defer cancel()
		}

		rates, err := s.Service.GetRates(ctx, currencies, target)
		if err != nil {
			status := statusFor(err)
			level.Error(s.logger).Log("msg", "rates request failed", "request_id", r.Header.Get(RequestIDHeader), "status", status, "err", err)
			writeError(rw, status, http.StatusText(status))
			return
		}

		response := make([]rate, 0, len(rates))
		for _, er := range rates {
			response = append(response, rate{
				SourceCurrency: er.Source,
				TargetCurrency: er.Target,
				Value:          json.Number(er.Value.String()),
			})
		}
		writeJSON(rw, http.StatusOK, response)
	}
}

// health produces HTTP handler reporting dependency status
func (s *Server) health() http.HandlerFunc {

	type report struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}

	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response := report{Status: "healthy", Checks: make(map[string]string, len(s.checks))}
		status := http.StatusOK
		for _, hc := range s.checks {
			err := hc.check(ctx)
			if err == nil {
				response.Checks[hc.name] = "ok"
				continue
			}
			response.Checks[hc.name] = err.Error()
			if hc.critical {
				response.Status = "unhealthy"
				status = http.StatusServiceUnavailable
			} else if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
		writeJSON(rw, status, response)
	}
}

// statusFor translates pipeline errors into HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, updater.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, updater.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, updater.ErrNetwork), errors.Is(err, updater.ErrUpstreamFormat):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
