package model

import "time"

// SeparateResponse is returned when an upload is accepted for separation
type SeparateResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConvertRequest asks for MIDI conversion of some or all stems of a job
type ConvertRequest struct {
	JobID     string               `json:"jobId" validate:"required,uuid"`
	StemNames []string             `json:"stemNames,omitempty" validate:"omitempty,dive,required,max=64"`
	Force     bool                 `json:"force"`
	Config    *ConversionOverrides `json:"config,omitempty"`
}

// ConversionOverrides carries optional per-request changes to the default
// ConversionConfig. Nil fields keep the default.
type ConversionOverrides struct {
	QuantizationGrid *Grid    `json:"quantizationGrid,omitempty" validate:"omitempty,oneof=none quarter eighth sixteenth thirty-second"`
	DetectTempo      *bool    `json:"detectTempo,omitempty"`
	MinConfidence    *float64 `json:"minConfidence,omitempty" validate:"omitempty,min=0,max=1"`
	MinDuration      *float64 `json:"minDuration,omitempty" validate:"omitempty,min=0"`
	MinVelocity      *int     `json:"minVelocity,omitempty" validate:"omitempty,min=1,max=127"`
	MaxVelocity      *int     `json:"maxVelocity,omitempty" validate:"omitempty,min=1,max=127"`
	RemoveOutliers   *bool    `json:"removeOutliers,omitempty"`
	OutlierSigma     *float64 `json:"outlierSigma,omitempty" validate:"omitempty,gt=0"`
	UseAI            *bool    `json:"useAi,omitempty"`
}

// Apply returns base with the non-nil overrides set
func (o *ConversionOverrides) Apply(base ConversionConfig) ConversionConfig {
	if o == nil {
		return base
	}
	if o.QuantizationGrid != nil {
		base.QuantizationGrid = *o.QuantizationGrid
	}
	if o.DetectTempo != nil {
		base.DetectTempo = *o.DetectTempo
	}
	if o.MinConfidence != nil {
		base.MinConfidence = *o.MinConfidence
	}
	if o.MinDuration != nil {
		base.MinDuration = *o.MinDuration
	}
	if o.MinVelocity != nil {
		base.VelocityRange.Min = *o.MinVelocity
	}
	if o.MaxVelocity != nil {
		base.VelocityRange.Max = *o.MaxVelocity
	}
	if o.RemoveOutliers != nil {
		base.RemoveOutliers = *o.RemoveOutliers
	}
	if o.OutlierSigma != nil {
		base.OutlierSigma = *o.OutlierSigma
	}
	if o.UseAI != nil {
		base.UseAI = *o.UseAI
	}
	return base
}

// ConvertResponse is returned when a conversion is accepted
type ConvertResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	StemNames []string  `json:"stemNames"`
	Cached    bool      `json:"cached"`
	Artifact  *FileMeta `json:"midiArtifact,omitempty"`
}

// ResetRequest moves a job back to an earlier status
type ResetRequest struct {
	To JobStatus `json:"to" validate:"required,oneof=uploaded separated"`
}

// JobStatusResponse is the public view of a job
type JobStatusResponse struct {
	JobID        string              `json:"jobId"`
	Status       JobStatus           `json:"status"`
	Progress     int                 `json:"progress"`
	CurrentStep  string              `json:"currentStep,omitempty"`
	Error        *string             `json:"error,omitempty"`
	Stems        map[string]FileMeta `json:"stems,omitempty"`
	MidiArtifact *FileMeta           `json:"midiArtifact,omitempty"`
	Result       *ConversionSummary  `json:"result,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// HealthResponse reports storage and dependency health
type HealthResponse struct {
	Status   string                     `json:"status"`
	Storage  map[string]DirectoryHealth `json:"storage"`
	Services map[string]bool            `json:"services"`
}

// DirectoryHealth describes one storage category directory
type DirectoryHealth struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Writable bool   `json:"writable"`
}
