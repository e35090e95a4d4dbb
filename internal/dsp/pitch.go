package dsp

import (
	"context"
	"math"

	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/transcribe"
)

// PitchTracker is a YIN-style monophonic pitch tracker. It implements
// transcribe.ContourSource.
type PitchTracker struct {
	FrameLength int
	HopLength   int
	MinFreq     float64
	MaxFreq     float64
	// Threshold is the cumulative-mean-normalized difference below which the
	// first dip is accepted as the period
	Threshold float64
	// SilenceRMS marks frames quieter than this as unvoiced
	SilenceRMS float64
}

// NewPitchTracker returns a tracker covering C2-C7
func NewPitchTracker() *PitchTracker {
	return &PitchTracker{
		FrameLength: 2048,
		HopLength:   512,
		MinFreq:     65.4,
		MaxFreq:     2093,
		Threshold:   0.15,
		SilenceRMS:  1e-3,
	}
}

// Contour returns one frame per hop. Frame time is the frame start.
func (p *PitchTracker) Contour(ctx context.Context, audio *model.AudioData) ([]transcribe.Frame, error) {
	if audio == nil || audio.SampleRate <= 0 {
		return []transcribe.Frame{}, nil
	}
	x := audio.Mono()
	sr := float64(audio.SampleRate)

	window := p.FrameLength / 2
	maxLag := int(sr / p.MinFreq)
	if maxLag > p.FrameLength-window {
		maxLag = p.FrameLength - window
	}
	minLag := int(sr / p.MaxFreq)
	if minLag < 2 {
		minLag = 2
	}

	frames := []transcribe.Frame{}
	diff := make([]float64, maxLag+1)
	for start := 0; start+p.FrameLength <= len(x); start += p.HopLength {
		if start%(p.HopLength*64) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		frame := x[start : start+p.FrameLength]
		f := transcribe.Frame{
			Time:      float64(start) / sr,
			Amplitude: rms(frame),
		}
		if f.Amplitude >= p.SilenceRMS {
			if lag, score, ok := yinLag(frame, window, minLag, maxLag, p.Threshold, diff); ok {
				freq := sr / lag
				f.Pitch = 69 + 12*math.Log2(freq/440)
				f.Confidence = clamp01(1 - score)
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// yinLag returns the refined period in samples and its normalized difference
func yinLag(frame []float64, window, minLag, maxLag int, threshold float64, d []float64) (float64, float64, bool) {
	if maxLag <= minLag {
		return 0, 1, false
	}
	d[0] = 0
	for tau := 1; tau <= maxLag; tau++ {
		var sum float64
		for j := 0; j < window; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		d[tau] = sum
	}

	// cumulative mean normalization, in place
	var running float64
	d[0] = 1
	for tau := 1; tau <= maxLag; tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] = d[tau] * float64(tau) / running
	}

	best := -1
	for tau := minLag; tau <= maxLag; tau++ {
		if d[tau] < threshold {
			for tau+1 <= maxLag && d[tau+1] < d[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		best = minLag
		for tau := minLag + 1; tau <= maxLag; tau++ {
			if d[tau] < d[best] {
				best = tau
			}
		}
	}

	lag := float64(best)
	if best > minLag && best < maxLag {
		a, b, c := d[best-1], d[best], d[best+1]
		if den := a - 2*b + c; den != 0 {
			lag += 0.5 * (a - c) / den
		}
	}
	return lag, d[best], true
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
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
