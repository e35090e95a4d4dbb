package model

import (
	"sort"
	"time"
)

// FileMeta describes a stored artifact
type FileMeta struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"-"`
	Token    string `json:"token,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Job is a stem/MIDI conversion job tracked across stages
type Job struct {
	ID             string              `json:"id"`
	TenantID       string              `json:"tenantId,omitempty"`
	Status         JobStatus           `json:"status"`
	Progress       int                 `json:"progress"`
	CurrentStep    string              `json:"currentStep,omitempty"`
	Error          *string             `json:"error,omitempty"`
	Upload         *FileMeta           `json:"upload,omitempty"`
	Stems          map[string]FileMeta `json:"stems,omitempty"`
	MidiArtifact   *FileMeta           `json:"midiArtifact,omitempty"`
	ConvertedStems []string            `json:"convertedStems,omitempty"`
	Config         *ConversionConfig   `json:"config,omitempty"`
	Result         *ConversionSummary  `json:"result,omitempty"`
	RetainUploads  bool                `json:"retainUploads"`
	RetainStems    bool                `json:"retainStems"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// ConversionSummary aggregates per-stem conversion results for a job
type ConversionSummary struct {
	DetectedTempo       *float64 `json:"detectedTempo,omitempty"`
	NotesFiltered       int      `json:"notesFiltered"`
	NoteCount           int      `json:"noteCount"`
	QuantizationApplied bool     `json:"quantizationApplied"`
	Tracks              int      `json:"tracks"`
}

var stemOrder = map[string]int{
	StemVocals: 0,
	StemDrums:  1,
	StemBass:   2,
	StemGuitar: 3,
	StemPiano:  4,
	StemOther:  5,
	StemMix:    6,
}

// StemNames returns the job's stem names, known stems first
func (j *Job) StemNames() []string {
	names := make([]string, 0, len(j.Stems))
	for name := range j.Stems {
		names = append(names, name)
	}
	sort.Slice(names, func(a, b int) bool {
		ra, okA := stemOrder[names[a]]
		rb, okB := stemOrder[names[b]]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		default:
			return names[a] < names[b]
		}
	})
	return names
}
