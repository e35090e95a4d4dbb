package dsp

import (
	"context"
	"math"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/transcribe"
)

// TempoTracker estimates tempo from the autocorrelation of an energy-flux
// onset envelope, weighted toward a prior tempo. It implements
// transcribe.TempoEstimator.
type TempoTracker struct {
	FrameLength int
	HopLength   int
	MinBPM      float64
	MaxBPM      float64
	PriorBPM    float64
	// MinConfidence below which the estimate is reported as unknown
	MinConfidence float64
	// MinDuration in seconds of audio needed for an estimate
	MinDuration float64
}

// NewTempoTracker returns a tracker for 60-200 BPM centered on 120
func NewTempoTracker() *TempoTracker {
	return &TempoTracker{
		FrameLength:   1024,
		HopLength:     512,
		MinBPM:        60,
		MaxBPM:        200,
		PriorBPM:      120,
		MinConfidence: 0.1,
		MinDuration:   2,
	}
}

func (t *TempoTracker) Estimate(ctx context.Context, audio *model.AudioData) (transcribe.Tempo, error) {
	if audio == nil || audio.SampleRate <= 0 || audio.Duration < t.MinDuration {
		return transcribe.UnknownTempo, nil
	}
	x := audio.Mono()
	fps := float64(audio.SampleRate) / float64(t.HopLength)

	env := t.onsetEnvelope(x)
	if len(env) < 4 {
		return transcribe.UnknownTempo, nil
	}
	if err := ctx.Err(); err != nil {
		return transcribe.UnknownTempo, err
	}

	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	for i := range env {
		env[i] -= mean
	}

	minLag := int(math.Floor(60 * fps / t.MaxBPM))
	maxLag := int(math.Ceil(60 * fps / t.MinBPM))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(env)-1 {
		maxLag = len(env) - 2
	}
	if maxLag <= minLag {
		return transcribe.UnknownTempo, nil
	}

	ac := make([]float64, maxLag+2)
	for lag := 0; lag <= maxLag+1; lag++ {
		var sum float64
		for i := 0; i+lag < len(env); i++ {
			sum += env[i] * env[i+lag]
		}
		ac[lag] = sum
	}
	if ac[0] <= 0 {
		return transcribe.UnknownTempo, nil
	}

	best, bestScore := -1, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		bpm := 60 * fps / float64(lag)
		octaves := math.Log2(bpm / t.PriorBPM)
		score := ac[lag] * math.Exp(-0.5*octaves*octaves)
		if score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best < 0 || ac[best] <= 0 {
		return transcribe.UnknownTempo, nil
	}

	lag := float64(best)
	if best > 0 {
		a, b, c := ac[best-1], ac[best], ac[best+1]
		if den := a - 2*b + c; den < 0 {
			lag += 0.5 * (a - c) / den
		}
	}

	confidence := clamp01(ac[best] / ac[0])
	if confidence < t.MinConfidence {
		return transcribe.UnknownTempo, nil
	}
	return transcribe.KnownTempo(60*fps/lag, confidence), nil
}

// onsetEnvelope returns the half-wave rectified frame energy difference,
// smoothed with a short triangular kernel. A flat signal yields all zeros.
func (t *TempoTracker) onsetEnvelope(x []float64) []float64 {
	var energy []float64
	peak := 0.0
	for start := 0; start+t.FrameLength <= len(x); start += t.HopLength {
		var e float64
		for _, v := range x[start : start+t.FrameLength] {
			e += v * v
		}
		energy = append(energy, e)
		if e > peak {
			peak = e
		}
	}
	if len(energy) < 2 || peak == 0 {
		return nil
	}

	flux := make([]float64, len(energy))
	var fluxPeak float64
	for i := 1; i < len(energy); i++ {
		if d := energy[i] - energy[i-1]; d > 0 {
			flux[i] = d
			if d > fluxPeak {
				fluxPeak = d
			}
		}
	}
	if fluxPeak < 0.02*peak {
		return nil
	}

	env := make([]float64, len(flux))
	for i := range flux {
		sum := 2 * flux[i]
		if i > 0 {
			sum += flux[i-1]
		}
		if i+1 < len(flux) {
			sum += flux[i+1]
		}
		env[i] = sum / 4
	}
	return env
}
