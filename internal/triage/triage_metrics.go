package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/triageq/internal/vitals"
)

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	ClassificationsTotal *prometheus.CounterVec
	SnapshotsTotal       prometheus.Counter
	VitalValue           *prometheus.GaugeVec
	PPGPoint             prometheus.Histogram
	ProfileChangesTotal  *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	PublishesTotal       *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClassificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageq_classifications_total",
			Help: "Total classifications by triage class and deciding rule.",
		}, []string{"class", "rule"}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triageq_snapshots_total",
			Help: "Total vitals snapshots served.",
		}),
		VitalValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "triageq_vital_value",
			Help: "Most recent simulated value per vital sign.",
		}, []string{"vital"}),
		PPGPoint: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triageq_ppg_point",
			Help:    "Distribution of synthetic PPG samples.",
			Buckets: prometheus.LinearBuckets(0.9, 0.02, 11), // 0.9 .. 1.1
		}),
		ProfileChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageq_profile_changes_total",
			Help: "Total simulation profile changes by resolved archetype.",
		}, []string{"archetype"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageq_notifications_total",
			Help: "Total escalation notifications by result.",
		}, []string{"result"}),
		PublishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triageq_stream_publishes_total",
			Help: "Total snapshots published to the stream by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.ClassificationsTotal,
		m.SnapshotsTotal,
		m.VitalValue,
		m.PPGPoint,
		m.ProfileChangesTotal,
		m.NotificationsTotal,
		m.PublishesTotal,
	)

	return m
}

// Hooks returns EngineHooks that count classifications.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnClassify: func(class Class, rule string) {
			m.ClassificationsTotal.WithLabelValues(string(class), rule).Inc()
		},
	}
}

func (m *Metrics) observeRecord(r vitals.Record) {
	m.SnapshotsTotal.Inc()
	m.VitalValue.WithLabelValues("hr").Set(r.HR)
	m.VitalValue.WithLabelValues("spo2").Set(r.SpO2)
	m.VitalValue.WithLabelValues("pi").Set(r.PI)
	m.VitalValue.WithLabelValues("rr").Set(r.RR)
	m.VitalValue.WithLabelValues("tau_us").Set(r.TauUS)
	m.VitalValue.WithLabelValues("signal_trust").Set(r.SignalTrust)
	m.PPGPoint.Observe(r.PPGPoint)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
