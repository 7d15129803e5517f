// Package metrics holds the Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reqDur = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cleanstreet_http_request_duration_seconds",
	Help:    "A histogram of latencies for requests.",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
}, []string{"code", "method", "path"})

var reqCnt = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_http_requests_total",
	Help: "A counter for requests to the wrapped handler.",
}, []string{"code", "method", "path"})

var complaintsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cleanstreet_complaints_created_total",
	Help: "The total number of complaints filed",
})

var statusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_complaint_status_updates_total",
	Help: "Status updates by previous and new status",
}, []string{"from", "to"})

var votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_votes_total",
	Help: "Votes set or cleared, by vote type",
}, []string{"type"})

var reactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_comment_reactions_total",
	Help: "Comment reactions by requested action",
}, []string{"action"})

var auditFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cleanstreet_audit_write_failures_total",
	Help: "Audit log entries that could not be written",
})

var authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_auth_attempts_total",
	Help: "Register and login attempts by outcome",
}, []string{"endpoint", "outcome"})

var rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cleanstreet_rate_limited_total",
	Help: "Requests rejected by the rate limiter",
}, []string{"path"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(code int, method, path string, elapsed time.Duration) {
	statusStr := strconv.Itoa(code)
	reqDur.WithLabelValues(statusStr, method, path).Observe(elapsed.Seconds())
	reqCnt.WithLabelValues(statusStr, method, path).Inc()
}

func ComplaintCreated() { complaintsCreated.Inc() }

func StatusUpdated(from, to string) { statusUpdates.WithLabelValues(from, to).Inc() }

// VoteCast records a vote; an empty type means the vote was cleared.
func VoteCast(voteType string) {
	if voteType == "" {
		voteType = "none"
	}
	votesCast.WithLabelValues(voteType).Inc()
}

func Reaction(action string) {
	if action == "" {
		action = "none"
	}
	reactions.WithLabelValues(action).Inc()
}

func AuditWriteFailed() { auditFailures.Inc() }

func AuthAttempt(endpoint, outcome string) { authAttempts.WithLabelValues(endpoint, outcome).Inc() }

func RateLimited(path string) { rateLimited.WithLabelValues(path).Inc() }

// RoutePattern collapses id segments so the path label stays bounded.
// Segments following a known collection name are treated as ids.
func RoutePattern(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		prev := parts[i-1]
		switch prev {
		case "complaints", "comments", "users", "votes":
			if isFixedSegment(parts[i]) {
				continue
			}
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isFixedSegment(segment string) bool {
	switch segment {
	case "mine", "recent", "all", "search", "me", "summary":
		return true
	}
	return false
}
