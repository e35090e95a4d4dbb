package transcribe

import (
	"math"

	"github.com/makeasinger/midiconv/internal/model"
)

// GridUnit returns the length in seconds of one grid cell, or 0 when the
// grid is none or the tempo is unusable.
func GridUnit(bpm float64, grid model.Grid) float64 {
	div := grid.Divisor()
	if div == 0 || !(bpm > 0) || math.IsInf(bpm, 0) {
		return 0
	}
	return 60 / bpm / float64(div)
}

// Quantize snaps onsets and offsets to the nearest grid multiple. It returns
// the input unchanged and false when the grid is none or the tempo unknown.
// The input slice is never modified.
func Quantize(notes []model.Note, tempo Tempo, grid model.Grid) ([]model.Note, bool) {
	if !tempo.Known {
		return notes, false
	}
	unit := GridUnit(tempo.BPM, grid)
	if unit == 0 {
		return notes, false
	}

	out := make([]model.Note, len(notes))
	for i, n := range notes {
		n.Onset = snap(n.Onset, unit)
		n.Offset = snap(n.Offset, unit)
		if n.Offset <= n.Onset {
			n.Offset = snap(n.Onset+unit, unit)
		}
		out[i] = n
	}
	return out, true
}

// snap rounds t to the nearest multiple of unit. The result is recomputed
// from the integer step count so snapping a snapped value is stable.
func snap(t, unit float64) float64 {
	steps := math.Round(t / unit)
	if steps < 0 {
		steps = 0
	}
	return steps * unit
}
