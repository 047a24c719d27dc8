package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rviscarra/screenrec/internal/frame"
	xlog "github.com/rviscarra/screenrec/internal/log"
	"github.com/rviscarra/screenrec/internal/metrics"
	"github.com/rviscarra/screenrec/internal/rdisplay"
	"github.com/rviscarra/screenrec/internal/sink"
)

// DefaultFrameRate nominal frames per second of the output
const DefaultFrameRate = 30

var (
	// ErrFinished the session already finished and can't be reused
	ErrFinished = errors.New("session finished")
	// ErrNotRunning Stop was called before Start
	ErrNotRunning = errors.New("session not running")
	// ErrInvalidScreen the screen descriptor has no area
	ErrInvalidScreen = errors.New("invalid screen")
)

// State of a session
type State int32

const (
	// Idle constructed, nothing open
	Idle State = iota
	// Running the loop is capturing
	Running
	// Stopping stop was requested, the loop is draining the current frame
	Stopping
	// Finished resources are released and the result is available
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SourceOpener binds grabbers to screens, rdisplay.Service satisfies it
type SourceOpener interface {
	CreateScreenGrabber(screen rdisplay.Screen) (rdisplay.ScreenGrabber, error)
}

// VideoSink receives converted frames, *sink.Sink satisfies it
type VideoSink interface {
	Write(f *frame.Frame) error
	Layout() frame.Layout
	Frames() int
	Close() error
}

// SinkOpener creates the sink for a session
type SinkOpener func(path string, width, height, frameRate int) (VideoSink, error)

// Converter repacks a captured frame into the sink layout
type Converter func(src *frame.Frame, dst frame.Layout) (*frame.Frame, error)

// NewSinkOpener opens MP4 sinks with the given options
func NewSinkOpener(opts ...sink.Option) SinkOpener {
	return func(path string, width, height, frameRate int) (VideoSink, error) {
		return sink.Open(path, width, height, frameRate, opts...)
	}
}

// Config of a session. Source is required, everything else has a default.
type Config struct {
	Source  SourceOpener
	Sink    SinkOpener // defaults to MP4/H.264
	Convert Converter  // defaults to frame.Convert

	TempDir   string // defaults to os.TempDir()
	FrameRate int    // defaults to DefaultFrameRate
	Pace      bool

	// OnFinish is called exactly once, from the session goroutine, after the
	// grabber and the sink are closed.
	OnFinish func(Result)

	Logger  *zerolog.Logger
	Metrics *metrics.Recorder
}

// Result is what a finished session hands back to the controller
type Result struct {
	Path     string
	Frames   int
	Err      error
	Started  time.Time
	Finished time.Time
}

// Duration of the recorded video at the nominal frame rate
func (r Result) Duration(frameRate int) time.Duration {
	if frameRate <= 0 {
		return 0
	}
	return time.Duration(r.Frames) * time.Second / time.Duration(frameRate)
}

// Session records one screen into a temporary file
type Session struct {
	id     uuid.UUID
	screen rdisplay.Screen
	path   string
	cfg    Config
	log    zerolog.Logger

	// stop is the only value the controller writes and the loop reads
	stop atomic.Bool
	done chan struct{}

	mu      sync.Mutex
	state   State
	started time.Time
	result  Result
}

// New creates an idle session bound to screen. The screen dimensions are
// captured here and used for the whole session.
func New(screen rdisplay.Screen, cfg Config) (*Session, error) {
	if screen.Width() <= 0 || screen.Height() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScreen, screen)
	}
	if cfg.Source == nil {
		return nil, errors.New("capture: no source configured")
	}
	if cfg.Sink == nil {
		cfg.Sink = NewSinkOpener()
	}
	if cfg.Convert == nil {
		cfg.Convert = frame.Convert
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	id := uuid.New()
	logger := xlog.WithComponent("capture")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Session{
		id:     id,
		screen: screen,
		path:   filepath.Join(cfg.TempDir, fmt.Sprintf("screenrec-%s.mp4", id)),
		cfg:    cfg,
		done:   make(chan struct{}),
	}
	s.log = logger.With().
		Str("session", id.String()).
		Int("display", screen.Index).
		Logger()
	return s, nil
}

// ID of the session
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Screen the session is bound to
func (s *Session) Screen() rdisplay.Screen {
	return s.screen
}

// OutputPath is the temporary file the recording is written to
func (s *Session) OutputPath() string {
	return s.path
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reached Finished and OnFinish returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the outcome, ok is false until the session finished
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == Finished
}

// Wait blocks until the session finished or ctx is done
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		res, _ := s.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Start opens the grabber and the sink and launches the loop. It does
// nothing when the session is already running. On failure the session stays
// idle and Start can be called again.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Running, Stopping:
		return nil
	case Finished:
		return ErrFinished
	}

	grabber, err := s.cfg.Source.CreateScreenGrabber(s.screen)
	if err != nil {
		return ensure(err, rdisplay.ErrDeviceOpen)
	}

	out, err := s.cfg.Sink(s.path, s.screen.Width(), s.screen.Height(), s.cfg.FrameRate)
	if err != nil {
		if cerr := grabber.Close(); cerr != nil {
			s.log.Warn().Err(cerr).Msg("closing grabber after sink failure")
		}
		return ensure(err, sink.ErrSinkOpen)
	}

	s.state = Running
	s.started = time.Now()
	s.cfg.Metrics.SessionStarted()
	s.log.Info().
		Str("path", s.path).
		Int("width", s.screen.Width()).
		Int("height", s.screen.Height()).
		Int("fps", s.cfg.FrameRate).
		Bool("pace", s.cfg.Pace).
		Msg("recording started")

	go s.run(grabber, out)
	return nil
}

// Stop asks the loop to finish after the frame it is working on. It returns
// immediately, use Done or Wait to learn when the file is complete.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle:
		return ErrNotRunning
	case Stopping:
		return nil
	case Finished:
		return ErrFinished
	}
	s.stop.Store(true)
	s.state = Stopping
	s.log.Debug().Msg("stop requested")
	return nil
}

// Discard removes the temporary file of a finished session
func (s *Session) Discard() error {
	if s.State() != Finished {
		return fmt.Errorf("discard: session is %v", s.State())
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Session) run(grabber rdisplay.ScreenGrabber, out VideoSink) {
	var limiter *rate.Limiter
	if s.cfg.Pace {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.FrameRate), 1)
	}

	var loopErr error
	for !s.stop.Load() {
		if limiter != nil {
			if err := limiter.Wait(context.Background()); err != nil {
				loopErr = err
				break
			}
		}
		if err := s.step(grabber, out); err != nil {
			loopErr = err
			break
		}
	}
	if loopErr != nil {
		s.log.Error().Err(loopErr).Msg("acquisition loop aborted")
	}

	var errs []error
	if loopErr != nil {
		errs = append(errs, loopErr)
	}
	if err := grabber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close grabber: %w", err))
	}
	if err := out.Close(); err != nil {
		errs = append(errs, err)
	}
	s.finish(out.Frames(), loopErr, errors.Join(errs...))
}

// step runs one grab, convert, write iteration
func (s *Session) step(grabber rdisplay.ScreenGrabber, out VideoSink) error {
	began := time.Now()
	raw, err := grabber.Grab()
	s.cfg.Metrics.Grab(time.Since(began))
	if err != nil {
		s.cfg.Metrics.Frame(metrics.FrameCaptureError)
		return ensure(err, rdisplay.ErrCapture)
	}

	converted, err := s.cfg.Convert(raw, out.Layout())
	if err != nil {
		s.cfg.Metrics.Frame(metrics.FrameFormatError)
		return ensure(err, frame.ErrFormat)
	}

	if err := out.Write(converted); err != nil {
		s.cfg.Metrics.Frame(metrics.FrameEncodeError)
		return ensure(err, sink.ErrEncode)
	}
	s.cfg.Metrics.Frame(metrics.FrameWritten)
	return nil
}

func (s *Session) finish(frames int, loopErr, err error) {
	s.mu.Lock()
	res := Result{
		Path:     s.path,
		Frames:   frames,
		Err:      err,
		Started:  s.started,
		Finished: time.Now(),
	}
	s.result = res
	s.state = Finished
	s.mu.Unlock()

	outcome := metrics.OutcomeCompleted
	switch {
	case err == nil:
	case loopErr == nil && errors.Is(err, sink.ErrEmptyRecording):
		outcome = metrics.OutcomeEmpty
	default:
		outcome = metrics.OutcomeFailed
	}
	s.cfg.Metrics.SessionFinished(outcome)

	var ev *zerolog.Event
	if outcome == metrics.OutcomeFailed {
		ev = s.log.Error().Err(err)
	} else {
		ev = s.log.Info()
	}
	ev.Str("outcome", outcome).
		Int("frames", frames).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("recording finished")

	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(res)
	}
	close(s.done)
}

// ensure wraps err with kind unless it already carries it
func ensure(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
