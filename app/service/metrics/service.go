package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
)

const namespace = "awsbot"

type Service struct {
	registry *prometheus.Registry

	turnsTotal     *prometheus.CounterVec
	turnDuration   prometheus.Histogram
	stepsTotal     *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec
	summariesTotal prometheus.Counter
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome and delivered medium",
		}, []string{"outcome", "response_type"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a whole conversation turn",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Executed workflow steps by result",
		}, []string{"step", "result"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Duration of workflow steps",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		summariesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Successful conversation compactions",
		}),
	}

	s.registry.MustRegister(
		s.turnsTotal,
		s.turnDuration,
		s.stepsTotal,
		s.stepDuration,
		s.summariesTotal,
		collectors.NewGoCollector(),
	)

	return s
}

func (s *Service) ObserveStep(step string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	s.stepsTotal.WithLabelValues(step, result).Inc()
	s.stepDuration.WithLabelValues(step).Observe(took.Seconds())

	if step == "summarize" && err == nil {
		s.summariesTotal.Inc()
	}
}

func (s *Service) ObserveTurn(responseType string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		responseType = "none"
	}

	s.turnsTotal.WithLabelValues(outcome, responseType).Inc()
	s.turnDuration.Observe(took.Seconds())
}

// Turns exposes the turn counter for one label pair.
func (s *Service) Turns(outcome, responseType string) prometheus.Counter {
	return s.turnsTotal.WithLabelValues(outcome, responseType)
}

func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
