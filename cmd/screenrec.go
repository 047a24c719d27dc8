package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rviscarra/screenrec/internal/capture"
	"github.com/rviscarra/screenrec/internal/export"
	xlog "github.com/rviscarra/screenrec/internal/log"
	"github.com/rviscarra/screenrec/internal/metrics"
	"github.com/rviscarra/screenrec/internal/rdisplay"
	"github.com/rviscarra/screenrec/internal/sink"
)

const thumbnailSize = 320

const usage = `usage: screenrec [-log.level LEVEL] [-log.console] <command> [flags]

commands:
  list    [-thumbs DIR]
  record  -display N -o OUT [-duration D] [-pace] [-tmp DIR]
`

func main() {
	logLevel := flag.String("log.level", "info", "Log level (debug, info, warn, error)")
	logConsole := flag.Bool("log.console", false, "Human readable logs")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	xlog.Configure(xlog.Config{Level: *logLevel, Console: *logConsole})
	logger := xlog.WithComponent("cli")

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "list":
		err = runList(args)
	case "record":
		err = runRecord(args, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		logger.Error().Err(err).Msg("screenrec failed")
		os.Exit(1)
	}
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	thumbs := fs.String("thumbs", "", "Write a PNG thumbnail of every display into this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	video, err := rdisplay.NewVideoProvider()
	if err != nil {
		return fmt.Errorf("can't init video: %w", err)
	}
	return listScreens(video, os.Stdout, *thumbs)
}

// listScreens prints one line per display, thumbsDir is optional
func listScreens(video rdisplay.Service, w io.Writer, thumbsDir string) error {
	screens, err := video.Screens()
	if err != nil {
		return err
	}
	for _, s := range screens {
		line := fmt.Sprintf("%d\t%dx%d\t%v", s.Index, s.Width(), s.Height(), s.Bounds.Min)
		if thumbsDir != "" {
			path, err := writeThumbnail(video, s, thumbsDir)
			if err != nil {
				return err
			}
			line += "\t" + path
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func writeThumbnail(video rdisplay.Service, s rdisplay.Screen, dir string) (string, error) {
	grabber, err := video.CreateScreenGrabber(s)
	if err != nil {
		return "", err
	}
	defer grabber.Close()

	f, err := grabber.Grab()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rdisplay.Thumbnail(f, thumbnailSize)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("display-%d.png", s.Index))
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, nil
}

func runRecord(args []string, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	display := fs.Int("display", 0, "Index of the display to record, as printed by list")
	out := fs.String("o", "", "Output file (.mp4)")
	duration := fs.Duration("duration", 0, "Stop after this long, 0 records until Enter or a signal")
	pace := fs.Bool("pace", false, "Cap the capture rate at the output frame rate")
	tmpDir := fs.String("tmp", "", "Directory for the in-progress recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fs.Usage()
		return errors.New("record: -o is required")
	}

	video, err := rdisplay.NewVideoProvider()
	if err != nil {
		return fmt.Errorf("can't init video: %w", err)
	}
	screens, err := video.Screens()
	if err != nil {
		return fmt.Errorf("can't get screens: %w", err)
	}
	if *display < 0 || *display >= len(screens) {
		return fmt.Errorf("%w: display %d, %d available", rdisplay.ErrDeviceOpen, *display, len(screens))
	}

	reg := prometheus.NewRegistry()
	sess, err := capture.New(screens[*display], capture.Config{
		Source:  video,
		Sink:    capture.NewSinkOpener(sink.WithLogger(xlog.WithComponent("sink"))),
		TempDir: *tmpDir,
		Pace:    *pace,
		Metrics: metrics.NewRecorder(reg),
	})
	if err != nil {
		return err
	}
	if err := sess.Start(); err != nil {
		return err
	}

	reason := waitForStop(sess, *duration)
	logger.Info().Str("reason", reason).Msg("stopping")
	if err := sess.Stop(); err != nil && !errors.Is(err, capture.ErrFinished) {
		return err
	}

	res, err := sess.Wait(context.Background())
	if err != nil {
		return err
	}
	logSummary(logger, reg)

	if res.Frames == 0 {
		if err := sess.Discard(); err != nil {
			logger.Warn().Err(err).Msg("discarding empty recording")
		}
		return res.Err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := export.Save(ctx, res.Path, *out); err != nil {
		return errors.Join(res.Err, err)
	}
	logger.Info().
		Str("output", *out).
		Int("frames", res.Frames).
		Dur("video", res.Duration(capture.DefaultFrameRate)).
		Msg("recording ready")
	// frames written before a fault are saved, the fault is still reported
	return res.Err
}

// waitForStop blocks until the user or the clock asks to stop, or the
// session ends by itself
func waitForStop(sess *capture.Session, duration time.Duration) string {
	reasons := make(chan string, 3)

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		reasons <- fmt.Sprintf("received %v signal", <-interrupt)
		signal.Stop(interrupt)
	}()

	go func() {
		fmt.Fprintln(os.Stderr, "Recording, press Enter to stop")
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err == nil {
			reasons <- "enter pressed"
		}
	}()

	var timeout <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-reasons:
		return r
	case <-timeout:
		return "duration elapsed"
	case <-sess.Done():
		return "session ended"
	}
}

// logSummary logs the counters gathered during the recording
func logSummary(logger zerolog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn().Err(err).Msg("gathering metrics")
		return
	}
	ev := logger.Info()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "." + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64(key, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				if n := h.GetSampleCount(); n > 0 {
					ev = ev.Dur(key+".mean", time.Duration(h.GetSampleSum()/float64(n)*float64(time.Second)))
				}
			}
		}
	}
	ev.Msg("capture summary")
}
