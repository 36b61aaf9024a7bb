package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	OrgsCreated         prometheus.Counter
	ChallengesIssued    prometheus.Counter
	VerificationChecks  *prometheus.CounterVec
	MembersEnrolled     prometheus.Counter
	EnrollmentFailures  *prometheus.CounterVec
	EnrollmentDuration  prometheus.Histogram
	OutboxPublished     prometheus.Counter
	OutboxPublishErrors prometheus.Counter
}

// Verification check outcomes.
const (
	CheckVerified  = "verified"
	CheckFailed    = "failed"
	CheckThrottled = "throttled"
)

// New creates the metrics and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrgsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkw_orgs_created_total",
			Help: "Total number of organizations created",
		}),
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkw_domain_challenges_issued_total",
			Help: "Total number of domain challenges issued or reissued",
		}),
		VerificationChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zkw_domain_verification_checks_total",
			Help: "Domain ownership checks by outcome",
		}, []string{"result"}),
		MembersEnrolled: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkw_members_enrolled_total",
			Help: "Total number of members appended to organization ledgers",
		}),
		EnrollmentFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zkw_enrollment_failures_total",
			Help: "Failed enrollments by error code",
		}, []string{"code"}),
		EnrollmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "zkw_enrollment_duration_seconds",
			Help:    "Time spent in the enrollment transaction",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkw_audit_outbox_published_total",
			Help: "Audit events relayed from the outbox",
		}),
		OutboxPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "zkw_audit_outbox_publish_errors_total",
			Help: "Failed outbox relay batches",
		}),
	}
}

func (m *Metrics) IncrementOrgsCreated() {
	if m == nil {
		return
	}
	m.OrgsCreated.Inc()
}

func (m *Metrics) IncrementChallengesIssued() {
	if m == nil {
		return
	}
	m.ChallengesIssued.Inc()
}

func (m *Metrics) ObserveVerificationCheck(result string) {
	if m == nil {
		return
	}
	m.VerificationChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEnrollment(start time.Time) {
	if m == nil {
		return
	}
	m.MembersEnrolled.Inc()
	m.EnrollmentDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementEnrollmentFailure(code string) {
	if m == nil {
		return
	}
	m.EnrollmentFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) AddOutboxPublished(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}

func (m *Metrics) IncrementOutboxPublishErrors() {
	if m == nil {
		return
	}
	m.OutboxPublishErrors.Inc()
}
