package transcribe

import (
	"context"

	"github.com/makeasinger/midiconv/internal/model"
)

// Frame is one analysis frame of a monophonic pitch contour. Pitch is a
// fractional MIDI key number, NaN or <= 0 when unvoiced.
type Frame struct {
	Time       float64 `json:"time"`
	Pitch      float64 `json:"pitch"`
	Confidence float64 `json:"confidence"`
	Amplitude  float64 `json:"amplitude"`
}

// Event is a discrete note reported by a polyphonic transcriber
type Event struct {
	Onset      float64 `json:"onset"`
	Offset     float64 `json:"offset"`
	Pitch      int     `json:"pitch"`
	Velocity   int     `json:"velocity"`
	Confidence float64 `json:"confidence"`
}

// Tempo is an estimated tempo. Known is false when no estimate is available.
type Tempo struct {
	BPM        float64
	Confidence float64
	Known      bool
}

// UnknownTempo is the zero estimate
var UnknownTempo = Tempo{}

// KnownTempo returns a known estimate
func KnownTempo(bpm, confidence float64) Tempo {
	return Tempo{BPM: bpm, Confidence: confidence, Known: bpm > 0}
}

// ContourSource produces a monophonic pitch contour
type ContourSource interface {
	Contour(ctx context.Context, audio *model.AudioData) ([]Frame, error)
}

// EventSource produces discrete note events, typically from an AI model
type EventSource interface {
	Events(ctx context.Context, audio *model.AudioData) ([]Event, error)
}

// TempoEstimator estimates the tempo of a buffer
type TempoEstimator interface {
	Estimate(ctx context.Context, audio *model.AudioData) (Tempo, error)
}

// Segmenter turns detector output into candidate notes
type Segmenter interface {
	Segment(ctx context.Context, audio *model.AudioData) ([]model.Note, error)
	Method() string
}
