package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Auth metrics

	CodesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "codes_issued_total",
		Help:      "Verification codes issued, by flow (signup, login, resend).",
	}, []string{"flow"})

	CodeVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "code_verifications_total",
		Help:      "Code verification attempts, by outcome.",
	}, []string{"outcome"})

	GoogleSignInsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "google_signins_total",
		Help:      "Google sign-in attempts, by flow (token, redirect) and outcome.",
	}, []string{"flow", "outcome"})

	AccountsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "accounts_created_total",
		Help:      "Accounts created, by authentication method.",
	}, []string{"method"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notes",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notes",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

// Outcome label values shared by the auth counters.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

func Register() {
	prometheus.MustRegister(
		CodesIssuedTotal,
		CodeVerificationsTotal,
		GoogleSignInsTotal,
		AccountsCreatedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
