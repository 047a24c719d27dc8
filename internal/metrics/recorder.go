// Package metrics holds the prometheus collectors of the capture pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame results
const (
	FrameWritten      = "written"
	FrameCaptureError = "capture_error"
	FrameFormatError  = "format_error"
	FrameEncodeError  = "encode_error"
)

// Session outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

// Recorder groups the collectors of one registry. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	frames   *prometheus.CounterVec
	grab     prometheus.Histogram
	sessions *prometheus.CounterVec
	active   prometheus.Gauge
}

// NewRecorder registers the collectors on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		frames: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screenrec_frames_total",
			Help: "Frames processed by the acquisition loop, by result",
		}, []string{"result"}),
		grab: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "screenrec_grab_seconds",
			Help:    "Time spent capturing one frame",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "screenrec_sessions_total",
			Help: "Finished capture sessions, by outcome",
		}, []string{"outcome"}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "screenrec_sessions_active",
			Help: "Capture sessions currently running",
		}),
	}
}

// Frame counts one loop iteration
func (r *Recorder) Frame(result string) {
	if r == nil {
		return
	}
	r.frames.WithLabelValues(result).Inc()
}

// Grab observes the duration of one capture
func (r *Recorder) Grab(d time.Duration) {
	if r == nil {
		return
	}
	r.grab.Observe(d.Seconds())
}

// SessionStarted marks a session as running
func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.active.Inc()
}

// SessionFinished records the outcome of a running session
func (r *Recorder) SessionFinished(outcome string) {
	if r == nil {
		return
	}
	r.active.Dec()
	r.sessions.WithLabelValues(outcome).Inc()
}
