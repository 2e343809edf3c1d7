package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiln_api_build_info",
			Help: "Build information of the Kiln API",
		},
		[]string{"version", "commit", "date"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_api_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kiln_api_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Ledger metrics
	BurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_burns_total",
			Help: "Total number of burn operations",
		},
		[]string{"ledger", "status"},
	)

	BurnedAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_burned_amount_total",
			Help: "Total token amount burned (approximate, float precision)",
		},
		[]string{"ledger"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_withdrawals_total",
			Help: "Total number of withdrawal operations",
		},
		[]string{"ledger", "status"},
	)

	WithdrawnAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_withdrawn_amount_total",
			Help: "Total token amount withdrawn (approximate, float precision)",
		},
		[]string{"ledger"},
	)

	LedgerOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kiln_api_ledger_op_duration_seconds",
			Help:    "Duration of ledger engine operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"op"},
	)

	ReferralCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiln_api_referral_credits_total",
			Help: "Total number of referral coefficient credits distributed",
		},
	)

	// Merchant metrics
	MerchantSubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_merchant_subscriptions_total",
			Help: "Total number of merchant subscription payments",
		},
		[]string{"status"},
	)

	GreenPointsIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiln_api_green_points_issued_total",
			Help: "Total green points issued (approximate, float precision)",
		},
	)

	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_api_redemptions_total",
			Help: "Total number of point redemption operations",
		},
		[]string{"status"},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordBurn records a burn attempt against a ledger.
func RecordBurn(ledger string, amount float64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	BurnsTotal.WithLabelValues(ledger, status).Inc()
	LedgerOpDuration.WithLabelValues("burn").Observe(duration.Seconds())
	if err == nil {
		BurnedAmountTotal.WithLabelValues(ledger).Add(amount)
	}
}

// RecordWithdrawal records a withdrawal attempt against a ledger.
func RecordWithdrawal(ledger string, amount float64, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WithdrawalsTotal.WithLabelValues(ledger, status).Inc()
	LedgerOpDuration.WithLabelValues("withdraw").Observe(duration.Seconds())
	if err == nil {
		WithdrawnAmountTotal.WithLabelValues(ledger).Add(amount)
	}
}

// RecordSubscription records a merchant subscription payment.
func RecordSubscription(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	MerchantSubscriptionsTotal.WithLabelValues(status).Inc()
}

// RecordRedemption records a point redemption attempt.
func RecordRedemption(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RedemptionsTotal.WithLabelValues(status).Inc()
}
