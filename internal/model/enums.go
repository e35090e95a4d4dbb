package model

// Quantization grids
type Grid string

const (
	GridNone         Grid = "none"
	GridQuarter      Grid = "quarter"
	GridEighth       Grid = "eighth"
	GridSixteenth    Grid = "sixteenth"
	GridThirtySecond Grid = "thirty-second"
)

var ValidGrids = []Grid{
	GridNone, GridQuarter, GridEighth, GridSixteenth, GridThirtySecond,
}

// Valid reports whether g is a known grid
func (g Grid) Valid() bool {
	for _, v := range ValidGrids {
		if g == v {
			return true
		}
	}
	return false
}

// Divisor returns the number of grid cells per quarter note, 0 for none
func (g Grid) Divisor() int {
	switch g {
	case GridQuarter:
		return 1
	case GridEighth:
		return 2
	case GridSixteenth:
		return 4
	case GridThirtySecond:
		return 8
	default:
		return 0
	}
}

// Job status
type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusSeparating JobStatus = "separating"
	JobStatusSeparated  JobStatus = "separated"
	JobStatusConverting JobStatus = "converting"
	JobStatusConverted  JobStatus = "converted"
	JobStatusFailed     JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobStatusUploaded:   0,
	JobStatusSeparating: 1,
	JobStatusSeparated:  2,
	JobStatusConverting: 3,
	JobStatusConverted:  4,
}

// Rank orders the non-failed statuses. Failed and unknown values return -1.
func (s JobStatus) Rank() int {
	if r, ok := jobStatusRank[s]; ok {
		return r
	}
	return -1
}

// CanTransition reports whether a job may move from one status to another
// without an explicit reset.
func CanTransition(from, to JobStatus) bool {
	if to == JobStatusFailed {
		return from != JobStatusFailed
	}
	if from == JobStatusFailed {
		return false
	}
	return to.Rank() == from.Rank()+1 && to.Rank() > 0
}

// Artifact categories
type Category string

const (
	CategoryUploads Category = "uploads"
	CategoryStems   Category = "stems"
	CategoryMIDI    Category = "midi"
)

var ValidCategories = []Category{CategoryUploads, CategoryStems, CategoryMIDI}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, v := range ValidCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Stem names produced by the four-source separator
const (
	StemVocals = "vocals"
	StemDrums  = "drums"
	StemBass   = "bass"
	StemOther  = "other"
	StemGuitar = "guitar"
	StemPiano  = "piano"
	StemMix    = "mix"
)

// Transcription methods
const (
	MethodMonophonic = "monophonic"
	MethodPolyphonic = "polyphonic"
)
