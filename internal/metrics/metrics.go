// Package metrics exposes prometheus collectors for the template lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "template_studio",
		Name:      "submissions_total",
		Help:      "Template submission attempts by result.",
	}, []string{"result"})

	StatusChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "template_studio",
		Name:      "status_checks_total",
		Help:      "Approval status checks by observed status, or error.",
	}, []string{"status"})

	FlowCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "template_studio",
		Name:      "flow_creations_total",
		Help:      "Flow creation calls issued after approval, by result.",
	}, []string{"result"})

	ActivePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "template_studio",
		Name:      "active_pollers",
		Help:      "Approval pollers currently holding a timer.",
	})

	WizardSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "template_studio",
		Name:      "wizard_sessions",
		Help:      "Open wizard sessions.",
	})
)
