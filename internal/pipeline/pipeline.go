// Package pipeline runs one audio buffer through detection, filtering,
// quantization and MIDI generation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"time"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/midi"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/progress"
	"github.com/makeasinger/midiconv/internal/storage"
	"github.com/makeasinger/midiconv/internal/transcribe"
)

// State of a single run
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateDetecting  State = "detecting"
	StateFiltering  State = "filtering"
	StateQuantizing State = "quantizing"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Progress stage names and the percentage reported when each finishes
const (
	StageLoading      = "loading"
	StagePitch        = "pitch_detection"
	StageSegmentation = "note_segmentation"
	StageTempo        = "tempo_detection"
	StageFiltering    = "note_filtering"
	StageQuantization = "quantization"
	StageGeneration   = "midi_generation"
	StageComplete     = "complete"
)

var stagePercent = map[string]int{
	StageLoading:      10,
	StagePitch:        30,
	StageSegmentation: 45,
	StageTempo:        55,
	StageFiltering:    70,
	StageQuantization: 80,
	StageGeneration:   95,
	StageComplete:     100,
}

var stateStage = map[State]string{
	StateLoading:    StageLoading,
	StateDetecting:  StagePitch,
	StateFiltering:  StageFiltering,
	StateQuantizing: StageQuantization,
	StateGenerating: StageGeneration,
}

// Orchestrator wires the collaborators for a conversion. A nil Events
// source means AI transcription is unavailable; a nil Tempo disables
// tempo detection.
type Orchestrator struct {
	Loader  audio.Loader
	Contour transcribe.ContourSource
	Events  transcribe.EventSource
	Tempo   transcribe.TempoEstimator
	Params  transcribe.SegmentParams
}

// New creates an orchestrator with default segmentation parameters
func New(loader audio.Loader, contour transcribe.ContourSource, events transcribe.EventSource, tempo transcribe.TempoEstimator) *Orchestrator {
	return &Orchestrator{
		Loader:  loader,
		Contour: contour,
		Events:  events,
		Tempo:   tempo,
		Params:  transcribe.DefaultSegmentParams(),
	}
}

// Request describes one conversion. Audio takes precedence over InputPath.
type Request struct {
	Audio      *model.AudioData
	InputPath  string
	OutputPath string
	Config     model.ConversionConfig
	Observer   progress.Observer
	// Stem labels the notes and progress updates
	Stem  string
	JobID string
}

// Output holds the refined notes of a run before MIDI generation
type Output struct {
	Notes               []model.Note
	Tempo               transcribe.Tempo
	NotesFiltered       int
	QuantizationApplied bool
	Method              string
	Duration            float64
}

type run struct {
	req   Request
	state State
}

func (r *run) enter(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		r.state = StateCancelled
		return apperr.Cancelled(stateStage[s], err)
	}
	r.state = s
	return nil
}

func (r *run) report(stage string) {
	if r.req.Observer == nil {
		return
	}
	r.req.Observer.Publish(progress.Update{
		JobID:   r.req.JobID,
		Stem:    r.req.Stem,
		Percent: stagePercent[stage],
		Stage:   stage,
	})
}

func (r *run) fail(err error) error {
	if apperr.KindOf(err) == apperr.KindCancelled {
		r.state = StateCancelled
	} else {
		r.state = StateFailed
	}
	return err
}

// Run executes loading through quantization and returns the notes
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Output, error) {
	r := &run{req: req, state: StateIdle}
	out, err := o.run(ctx, r)
	if err != nil {
		return nil, r.fail(err)
	}
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, r *run) (*Output, error) {
	req := r.req
	cfg := req.Config

	if err := r.enter(ctx, StateLoading); err != nil {
		return nil, err
	}
	data := req.Audio
	if data == nil {
		if o.Loader == nil {
			return nil, apperr.AudioLoad(req.InputPath, errors.New("no loader configured"))
		}
		loaded, err := o.Loader.Load(ctx, req.InputPath)
		if err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return nil, ae.WithStage(StageLoading)
			}
			return nil, apperr.AudioLoad(req.InputPath, err)
		}
		data = loaded
	}
	r.report(StageLoading)

	if err := r.enter(ctx, StateDetecting); err != nil {
		return nil, err
	}
	notes, method, err := o.segment(ctx, data, cfg)
	if err != nil {
		return nil, err
	}
	r.report(StagePitch)
	r.report(StageSegmentation)

	tempo := transcribe.UnknownTempo
	if cfg.DetectTempo && o.Tempo != nil {
		t, err := o.Tempo.Estimate(ctx, data)
		if err != nil {
			log.Printf("Tempo detection failed, continuing without tempo: %v", err)
		} else {
			tempo = t
		}
	}
	r.report(StageTempo)

	if err := r.enter(ctx, StateFiltering); err != nil {
		return nil, err
	}
	kept, removed := transcribe.Filter(notes, transcribe.FilterConfigFrom(cfg))
	if len(kept) == 0 && len(notes) > 0 {
		log.Printf("Warning: filtering removed all %d notes, keeping unfiltered notes", len(notes))
		kept, removed = notes, 0
	}
	r.report(StageFiltering)

	if err := r.enter(ctx, StateQuantizing); err != nil {
		return nil, err
	}
	quantized, applied := transcribe.Quantize(kept, tempo, cfg.QuantizationGrid)
	r.report(StageQuantization)

	if req.Stem != "" {
		for i := range quantized {
			quantized[i].StemLabel = req.Stem
		}
	}

	return &Output{
		Notes:               quantized,
		Tempo:               tempo,
		NotesFiltered:       removed,
		QuantizationApplied: applied,
		Method:              method,
		Duration:            data.Duration,
	}, nil
}

// segment picks exactly one segmenter. A model failure on the polyphonic
// path degrades to the monophonic one when the config allows it.
func (o *Orchestrator) segment(ctx context.Context, data *model.AudioData, cfg model.ConversionConfig) ([]model.Note, string, error) {
	if cfg.UseAI {
		var err error
		if o.Events == nil {
			err = apperr.Model("AI transcription is not configured", nil)
		} else {
			seg := transcribe.NewPolyphonicSegmenter(o.Events)
			var notes []model.Note
			notes, err = seg.Segment(ctx, data)
			if err == nil {
				return notes, seg.Method(), nil
			}
		}
		if apperr.KindOf(err) != apperr.KindModel || !cfg.AllowFallback {
			return nil, "", stageError(StagePitch, err)
		}
		log.Printf("AI transcription unavailable, falling back to monophonic detection: %v", err)
	}

	if o.Contour == nil {
		return nil, "", apperr.Conversion(StagePitch, "no pitch detector configured", nil)
	}
	seg := &transcribe.MonophonicSegmenter{Source: o.Contour, Params: o.Params}
	notes, err := seg.Segment(ctx, data)
	if err != nil {
		return nil, "", stageError(StagePitch, err)
	}
	return notes, seg.Method(), nil
}

func stageError(stage string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithStage(stage)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Cancelled(stage, err)
	}
	return apperr.Conversion(stage, "detection failed", err)
}

// Process converts one buffer or file to a MIDI file at req.OutputPath.
// It never returns an error; failures are reported in the result.
func (o *Orchestrator) Process(ctx context.Context, req Request) model.ConversionResult {
	start := time.Now()
	r := &run{req: req, state: StateIdle}

	result := model.ConversionResult{OutputPath: req.OutputPath}
	finish := func(err error) model.ConversionResult {
		result.ProcessingTime = time.Since(start)
		if err == nil {
			result.Success = true
			return result
		}
		err = r.fail(err)
		result.Success = false
		result.OutputPath = ""
		result.ErrorMessage = err.Error()
		result.FailedStage = apperr.StageOf(err)
		result.Cancelled = apperr.KindOf(err) == apperr.KindCancelled
		return result
	}

	out, err := o.run(ctx, r)
	if err != nil {
		return finish(err)
	}
	result.NotesFiltered = out.NotesFiltered
	result.QuantizationApplied = out.QuantizationApplied
	result.NoteCount = len(out.Notes)
	result.Duration = out.Duration
	result.TranscriptionMethod = out.Method
	if out.Tempo.Known {
		bpm := out.Tempo.BPM
		result.DetectedTempo = &bpm
	}

	if err := r.enter(ctx, StateGenerating); err != nil {
		return finish(err)
	}
	if req.OutputPath == "" {
		return finish(apperr.Conversion(StageGeneration, "no output path", nil))
	}
	bpm := req.Config.DefaultTempo
	if out.Tempo.Known {
		bpm = out.Tempo.BPM
	}
	data, err := midi.Encode(midi.TracksByStem(out.Notes), bpm)
	if err != nil {
		return finish(apperr.Conversion(StageGeneration, "failed to encode MIDI", err))
	}
	if _, err := storage.AtomicWriteFile(req.OutputPath, bytes.NewReader(data)); err != nil {
		return finish(stageError(StageGeneration, err))
	}
	r.report(StageGeneration)

	r.state = StateDone
	r.report(StageComplete)
	return finish(nil)
}
