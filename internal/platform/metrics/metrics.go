package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the registry core.
type Metrics struct {
	ParcelsCreated         prometheus.Counter
	ApplicationsSubmitted  prometheus.Counter
	ApplicationTransitions *prometheus.CounterVec
	CertificatesIssued     prometheus.Counter
	CertificatesRevoked    prometheus.Counter
	Verifications          *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		ParcelsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landregistry_parcels_created_total",
			Help: "Total number of parcels created",
		}),
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landregistry_applications_submitted_total",
			Help: "Total number of applications submitted",
		}),
		ApplicationTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landregistry_application_transitions_total",
			Help: "Application status transitions by target status",
		}, []string{"status"}),
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landregistry_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		CertificatesRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "landregistry_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "landregistry_certificate_verifications_total",
			Help: "Certificate verification requests by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementParcelsCreated() {
	m.ParcelsCreated.Inc()
}

func (m *Metrics) IncrementApplicationsSubmitted() {
	m.ApplicationsSubmitted.Inc()
}

func (m *Metrics) IncrementApplicationTransition(status string) {
	m.ApplicationTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementCertificatesIssued() {
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementCertificatesRevoked() {
	m.CertificatesRevoked.Inc()
}

func (m *Metrics) IncrementVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}
