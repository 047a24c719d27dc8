package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.SessionStarted()
	r.Frame(FrameWritten)
	r.Frame(FrameWritten)
	r.Frame(FrameCaptureError)
	r.Grab(3 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.active))
	r.SessionFinished(OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.frames.WithLabelValues(FrameWritten)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.frames.WithLabelValues(FrameCaptureError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.active))
	assert.Equal(t, 1, testutil.CollectAndCount(r.grab))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SessionStarted()
		r.Frame(FrameWritten)
		r.Grab(time.Millisecond)
		r.SessionFinished(OutcomeCompleted)
	})
}
