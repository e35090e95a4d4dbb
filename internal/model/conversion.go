package model

import "time"

// VelocityRange bounds accepted note velocities
type VelocityRange struct {
	Min int `json:"min" validate:"min=1,max=127"`
	Max int `json:"max" validate:"min=1,max=127,gtefield=Min"`
}

// ConversionConfig holds the options for one conversion run. It is stored
// with the job so a conversion can be reproduced.
type ConversionConfig struct {
	QuantizationGrid Grid          `json:"quantizationGrid" validate:"omitempty,oneof=none quarter eighth sixteenth thirty-second"`
	DetectTempo      bool          `json:"detectTempo"`
	MinConfidence    float64       `json:"minConfidence" validate:"min=0,max=1"`
	MinDuration      float64       `json:"minDuration" validate:"min=0"`
	MaxDuration      float64       `json:"maxDuration,omitempty" validate:"min=0"`
	VelocityRange    VelocityRange `json:"velocityRange"`
	RemoveOutliers   bool          `json:"removeOutliers"`
	OutlierSigma     float64       `json:"outlierSigma" validate:"min=0"`
	UseAI            bool          `json:"useAi"`
	AllowFallback    bool          `json:"allowFallback"`
	DefaultTempo     float64       `json:"defaultTempo,omitempty" validate:"omitempty,min=20,max=400"`
}

// DefaultConversionConfig returns the baseline options
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		QuantizationGrid: GridNone,
		DetectTempo:      true,
		MinConfidence:    0.3,
		MinDuration:      0.05,
		VelocityRange:    VelocityRange{Min: 1, Max: 127},
		RemoveOutliers:   true,
		OutlierSigma:     3.0,
		AllowFallback:    true,
		DefaultTempo:     120,
	}
}

// ConversionResult is the outcome of a single-file conversion
type ConversionResult struct {
	Success             bool          `json:"success"`
	ErrorMessage        string        `json:"errorMessage,omitempty"`
	FailedStage         string        `json:"failedStage,omitempty"`
	OutputPath          string        `json:"outputPath,omitempty"`
	DetectedTempo       *float64      `json:"detectedTempo,omitempty"`
	NotesFiltered       int           `json:"notesFiltered"`
	QuantizationApplied bool          `json:"quantizationApplied"`
	NoteCount           int           `json:"noteCount"`
	Duration            float64       `json:"duration"`
	TranscriptionMethod string        `json:"transcriptionMethod,omitempty"`
	Cancelled           bool          `json:"cancelled,omitempty"`
	ProcessingTime      time.Duration `json:"processingTime"`
}
