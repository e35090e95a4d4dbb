package model

import "math"

// Note is a single discrete note event in seconds.
type Note struct {
	Pitch      int     `json:"pitch"`
	Onset      float64 `json:"onset"`
	Offset     float64 `json:"offset"`
	Velocity   int     `json:"velocity"`
	Confidence float64 `json:"confidence"`
	StemLabel  string  `json:"stemLabel,omitempty"`
}

// Duration returns Offset - Onset
func (n Note) Duration() float64 {
	return n.Offset - n.Onset
}

// Valid reports whether the note satisfies the range and ordering constraints
func (n Note) Valid() bool {
	return n.Pitch >= 0 && n.Pitch <= 127 &&
		n.Velocity >= 1 && n.Velocity <= 127 &&
		n.Confidence >= 0 && n.Confidence <= 1 &&
		!math.IsNaN(n.Onset) && n.Onset >= 0 && n.Onset < n.Offset
}

// ClampPitch limits a MIDI key number to 0-127
func ClampPitch(p int) int {
	if p < 0 {
		return 0
	}
	if p > 127 {
		return 127
	}
	return p
}

// ClampVelocity limits a velocity to 1-127
func ClampVelocity(v int) int {
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return v
}
