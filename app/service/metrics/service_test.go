package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStep(t *testing.T) {
	s := NewService()

	s.ObserveStep("route", time.Millisecond, nil)
	s.ObserveStep("summarize", time.Millisecond, nil)
	s.ObserveStep("summarize", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.stepsTotal.WithLabelValues("route", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.stepsTotal.WithLabelValues("summarize", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.summariesTotal))
}

func TestObserveTurn(t *testing.T) {
	s := NewService()

	s.ObserveTurn("audio", time.Second, nil)
	s.ObserveTurn("text", time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.turnsTotal.WithLabelValues("ok", "audio")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.turnsTotal.WithLabelValues("error", "none")))
}
