// Package container muxes H.264 access units into fragmented MP4.
//
// The init segment needs the SPS and PPS of the stream, so nothing is written
// until the first access unit arrives. Every fragment holds up to
// FragmentFrames samples and is written as soon as it fills up, which keeps
// the already written part of a file playable if the process dies.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/avc"
	"github.com/Eyevinn/mp4ff/mp4"
)

// DefaultFragmentFrames one fragment per second at 30 fps
const DefaultFragmentFrames = 30

// ticks per frame, the track timescale is frameRate times this
const ticksPerFrame = 1000

var (
	// ErrNoSamples Close was called before any access unit was written
	ErrNoSamples = errors.New("no samples written")
	// ErrMissingParameterSets the first access unit has no SPS or PPS
	ErrMissingParameterSets = errors.New("first access unit lacks SPS/PPS")
	// ErrEmptyAccessUnit the access unit has no slice data
	ErrEmptyAccessUnit = errors.New("empty access unit")
)

// Writer writes a single video track fragmented MP4 file
type Writer struct {
	w              io.Writer
	timescale      uint32
	fragmentFrames int

	init    *mp4.InitSegment
	trackID uint32

	frag       *mp4.Fragment
	seq        uint32
	inFrag     int
	decodeTime uint64
	samples    int
}

// NewWriter creates a muxer for a stream at frameRate. fragmentFrames <= 0
// selects DefaultFragmentFrames.
func NewWriter(w io.Writer, frameRate, fragmentFrames int) (*Writer, error) {
	if frameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", frameRate)
	}
	if fragmentFrames <= 0 {
		fragmentFrames = DefaultFragmentFrames
	}
	return &Writer{
		w:              w,
		timescale:      uint32(frameRate) * ticksPerFrame,
		fragmentFrames: fragmentFrames,
		seq:            1,
	}, nil
}

// Timescale of the video track
func (m *Writer) Timescale() uint32 {
	return m.timescale
}

// Samples returns how many access units reached the underlying writer.
// Samples of the fragment still being filled are not counted.
func (m *Writer) Samples() int {
	return m.samples
}

// WriteAccessUnit appends one Annex-B encoded picture as the next sample
func (m *Writer) WriteAccessUnit(au []byte) error {
	nalus := avc.ExtractNalusFromByteStream(au)

	data, sync, picture := naluSample(nalus)
	if !picture {
		return ErrEmptyAccessUnit
	}

	if m.init == nil {
		if err := m.writeInit(nalus); err != nil {
			return err
		}
	}

	if m.frag == nil {
		frag, err := mp4.CreateFragment(m.seq, m.trackID)
		if err != nil {
			return err
		}
		m.frag = frag
	}

	var flags uint32 = mp4.NonSyncSampleFlags
	if sync {
		flags = mp4.SyncSampleFlags
	}
	m.frag.AddFullSample(mp4.FullSample{
		Sample: mp4.Sample{
			Flags: flags,
			Dur:   ticksPerFrame,
			Size:  uint32(len(data)),
		},
		DecodeTime: m.decodeTime,
		Data:       data,
	})
	m.decodeTime += ticksPerFrame
	m.inFrag++

	if m.inFrag >= m.fragmentFrames {
		return m.flushFragment()
	}
	return nil
}

// Close writes the pending fragment. It does not close the underlying writer.
func (m *Writer) Close() error {
	if m.samples == 0 && m.inFrag == 0 {
		return ErrNoSamples
	}
	return m.flushFragment()
}

func (m *Writer) writeInit(nalus [][]byte) error {
	var spss, ppss [][]byte
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS:
			spss = append(spss, nalu)
		case avc.NALU_PPS:
			ppss = append(ppss, nalu)
		}
	}
	if len(spss) == 0 || len(ppss) == 0 {
		return ErrMissingParameterSets
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(m.timescale, "video", "und")
	trak := init.Moov.Trak
	if err := trak.SetAVCDescriptor("avc1", spss, ppss, true); err != nil {
		return fmt.Errorf("avc descriptor: %w", err)
	}
	if err := init.Encode(m.w); err != nil {
		return fmt.Errorf("write init segment: %w", err)
	}
	m.init = init
	m.trackID = trak.Tkhd.TrackID
	return nil
}

func (m *Writer) flushFragment() error {
	if m.frag == nil {
		return nil
	}
	frag, n := m.frag, m.inFrag
	m.frag = nil
	m.inFrag = 0
	m.seq++
	if err := frag.Encode(m.w); err != nil {
		return fmt.Errorf("write fragment %d: %w", m.seq-1, err)
	}
	m.samples += n
	return nil
}

// naluSample converts the picture NAL units into a length prefixed sample.
// Parameter sets and delimiters are left out, avc1 carries them in the
// sample description. picture is false when no slice was found.
func naluSample(nalus [][]byte) (data []byte, sync, picture bool) {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch avc.GetNaluType(nalu[0]) {
		case avc.NALU_SPS, avc.NALU_PPS, avc.NALU_AUD:
			continue
		case avc.NALU_IDR:
			sync = true
			picture = true
		case avc.NALU_NON_IDR:
			picture = true
		}
		data = binary.BigEndian.AppendUint32(data, uint32(len(nalu)))
		data = append(data, nalu...)
	}
	return data, sync, picture
}
