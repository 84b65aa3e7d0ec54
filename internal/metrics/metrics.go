package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	MailJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_mail_jobs_total",
			Help: "Outbound mail jobs by result",
		},
		[]string{"result"},
	)

	AuthEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cms_auth_events_total",
			Help: "Account lifecycle events",
		},
		[]string{"event"},
	)
)

// Auth events.
const (
	EventRegistered    = "registered"
	EventVerified      = "verified"
	EventLoginOK       = "login_ok"
	EventLoginFailed   = "login_failed"
	EventResetRequest  = "reset_requested"
	EventPasswordReset = "password_reset"
	EventLocked        = "locked"
	EventUnlocked      = "unlocked"
	EventDeleted       = "deleted"
	EventRestored      = "restored"
)

// Mail job results.
const (
	MailQueued  = "queued"
	MailSent    = "sent"
	MailFailed  = "failed"
	MailDropped = "dropped"
)

func AuthEvent(event string) { AuthEvents.WithLabelValues(event).Inc() }
func MailJob(result string)  { MailJobs.WithLabelValues(result).Inc() }
