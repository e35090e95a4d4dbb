package transcribe

import (
	"context"
	"math"
	"sort"

	"github.com/makeasinger/midiconv/internal/model"
)

// SegmentParams tunes the monophonic state machine
type SegmentParams struct {
	// ConfidenceFloor is the per-frame confidence a frame must exceed to count as voiced
	ConfidenceFloor float64
	// MinFrames is the stable run length needed to open a note, and the
	// shortest run that is emitted
	MinFrames int
	// StabilityTolerance is the largest inter-frame deviation, in semitones,
	// still considered stable while opening a note
	StabilityTolerance float64
	// JumpThreshold closes the current note when exceeded between frames
	JumpThreshold float64
	// FloorDB is the amplitude, in dBFS, mapped to velocity 1
	FloorDB float64
}

// DefaultSegmentParams returns the standard tuning
func DefaultSegmentParams() SegmentParams {
	return SegmentParams{
		ConfidenceFloor:    0.5,
		MinFrames:          3,
		StabilityTolerance: 0.5,
		JumpThreshold:      1.0,
		FloorDB:            -60,
	}
}

type segState int

const (
	stateSilence segState = iota
	stateVoiced
)

// MonophonicSegmenter segments a contour with a Silence/Voiced state machine
type MonophonicSegmenter struct {
	Source ContourSource
	Params SegmentParams
}

// NewMonophonicSegmenter creates a segmenter over source with default params
func NewMonophonicSegmenter(source ContourSource) *MonophonicSegmenter {
	return &MonophonicSegmenter{Source: source, Params: DefaultSegmentParams()}
}

func (s *MonophonicSegmenter) Method() string { return model.MethodMonophonic }

// Segment fetches the contour and segments it
func (s *MonophonicSegmenter) Segment(ctx context.Context, audio *model.AudioData) ([]model.Note, error) {
	frames, err := s.Source.Contour(ctx, audio)
	if err != nil {
		return nil, err
	}
	return SegmentContour(frames, s.Params), nil
}

// SegmentContour runs the state machine over frames. An empty contour
// yields no notes.
func SegmentContour(frames []Frame, p SegmentParams) []model.Note {
	if len(frames) == 0 {
		return []model.Note{}
	}
	if p.MinFrames < 1 {
		p.MinFrames = 1
	}
	hop := frameHop(frames)

	var (
		notes = []model.Note{}
		state = stateSilence
		run   []Frame // current voiced run
		cand  []Frame // stable candidate while silent
	)

	voiced := func(f Frame) bool {
		return f.Confidence > p.ConfidenceFloor && f.Pitch > 0 && !math.IsNaN(f.Pitch)
	}
	emit := func() {
		if len(run) >= p.MinFrames {
			notes = append(notes, noteFromRun(run, hop, p.FloorDB))
		}
		run = nil
	}

	for _, f := range frames {
		switch state {
		case stateSilence:
			if !voiced(f) {
				cand = cand[:0]
				continue
			}
			if len(cand) > 0 && math.Abs(f.Pitch-cand[len(cand)-1].Pitch) > p.StabilityTolerance {
				cand = cand[:0]
			}
			cand = append(cand, f)
			if len(cand) >= p.MinFrames {
				run = append([]Frame(nil), cand...)
				cand = cand[:0]
				state = stateVoiced
			}

		case stateVoiced:
			if !voiced(f) {
				emit()
				state = stateSilence
				continue
			}
			if math.Abs(f.Pitch-run[len(run)-1].Pitch) > p.JumpThreshold {
				emit()
				run = []Frame{f}
				continue
			}
			run = append(run, f)
		}
	}
	if state == stateVoiced {
		emit()
	}
	return notes
}

func noteFromRun(run []Frame, hop, floorDB float64) model.Note {
	pitches := make([]float64, len(run))
	var confSum, ampSum float64
	for i, f := range run {
		pitches[i] = f.Pitch
		confSum += f.Confidence
		ampSum += f.Amplitude
	}
	n := float64(len(run))
	return model.Note{
		Pitch:      model.ClampPitch(int(math.Round(median(pitches)))),
		Onset:      run[0].Time,
		Offset:     run[len(run)-1].Time + hop,
		Velocity:   AmplitudeToVelocity(ampSum/n, floorDB),
		Confidence: clamp01(confSum / n),
	}
}

// AmplitudeToVelocity maps a linear amplitude onto 1-127 on a dB scale.
// floorDB and below map to 1, full scale maps to 127.
func AmplitudeToVelocity(amp, floorDB float64) int {
	if floorDB >= 0 {
		floorDB = -60
	}
	if amp <= 0 || math.IsNaN(amp) {
		return 1
	}
	db := 20 * math.Log10(amp)
	norm := (db - floorDB) / -floorDB
	if norm < 0 {
		norm = 0
	}
	if norm > 1 {
		norm = 1
	}
	return model.ClampVelocity(1 + int(math.Round(norm*126)))
}

func frameHop(frames []Frame) float64 {
	if len(frames) < 2 {
		return 0.01
	}
	deltas := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		if d := frames[i].Time - frames[i-1].Time; d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0.01
	}
	return median(deltas)
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 0 {
		return (s[mid-1] + s[mid]) / 2
	}
	return s[mid]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PolyphonicSegmenter passes AI-detected events through as notes
type PolyphonicSegmenter struct {
	Source EventSource
}

// NewPolyphonicSegmenter creates a pass-through segmenter over source
func NewPolyphonicSegmenter(source EventSource) *PolyphonicSegmenter {
	return &PolyphonicSegmenter{Source: source}
}

func (s *PolyphonicSegmenter) Method() string { return model.MethodPolyphonic }

func (s *PolyphonicSegmenter) Segment(ctx context.Context, audio *model.AudioData) ([]model.Note, error) {
	events, err := s.Source.Events(ctx, audio)
	if err != nil {
		return nil, err
	}
	return EventsToNotes(events), nil
}

// EventsToNotes converts events to notes, clamping ranges and dropping
// events without positive duration.
func EventsToNotes(events []Event) []model.Note {
	notes := make([]model.Note, 0, len(events))
	for _, e := range events {
		if !(e.Offset > e.Onset) || e.Onset < 0 {
			continue
		}
		notes = append(notes, model.Note{
			Pitch:      model.ClampPitch(e.Pitch),
			Onset:      e.Onset,
			Offset:     e.Offset,
			Velocity:   model.ClampVelocity(e.Velocity),
			Confidence: clamp01(e.Confidence),
		})
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Onset < notes[j].Onset })
	return notes
}
