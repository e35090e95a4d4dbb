package transcribe

import (
	"math"

	"github.com/makeasinger/midiconv/internal/model"
)

// minOutlierSamples is the smallest population outlier removal runs on
const minOutlierSamples = 3

// FilterConfig selects the active filter stages. A zero threshold disables
// its stage.
type FilterConfig struct {
	MinConfidence  float64
	MinDuration    float64
	MaxDuration    float64
	MinVelocity    int
	MaxVelocity    int
	RemoveOutliers bool
	OutlierSigma   float64
}

// FilterConfigFrom extracts the filter settings of a conversion config
func FilterConfigFrom(cfg model.ConversionConfig) FilterConfig {
	return FilterConfig{
		MinConfidence:  cfg.MinConfidence,
		MinDuration:    cfg.MinDuration,
		MaxDuration:    cfg.MaxDuration,
		MinVelocity:    cfg.VelocityRange.Min,
		MaxVelocity:    cfg.VelocityRange.Max,
		RemoveOutliers: cfg.RemoveOutliers,
		OutlierSigma:   cfg.OutlierSigma,
	}
}

// Filter drops notes failing the configured predicates, in order:
// confidence, duration, velocity, then pitch outliers. It returns the
// survivors and how many notes were removed in total.
func Filter(notes []model.Note, cfg FilterConfig) ([]model.Note, int) {
	kept := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if cfg.MinConfidence > 0 && n.Confidence < cfg.MinConfidence {
			continue
		}
		if cfg.MinDuration > 0 && n.Duration() < cfg.MinDuration {
			continue
		}
		if cfg.MaxDuration > 0 && n.Duration() > cfg.MaxDuration {
			continue
		}
		if cfg.MinVelocity > 0 && n.Velocity < cfg.MinVelocity {
			continue
		}
		if cfg.MaxVelocity > 0 && n.Velocity > cfg.MaxVelocity {
			continue
		}
		kept = append(kept, n)
	}

	if cfg.RemoveOutliers && cfg.OutlierSigma > 0 {
		kept = removePitchOutliers(kept, cfg.OutlierSigma)
	}
	return kept, len(notes) - len(kept)
}

func removePitchOutliers(notes []model.Note, sigma float64) []model.Note {
	if len(notes) < minOutlierSamples {
		return notes
	}
	var sum float64
	for _, n := range notes {
		sum += float64(n.Pitch)
	}
	mean := sum / float64(len(notes))
	var sq float64
	for _, n := range notes {
		d := float64(n.Pitch) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(notes)))
	if std == 0 {
		return notes
	}

	kept := notes[:0:0]
	for _, n := range notes {
		if math.Abs(float64(n.Pitch)-mean)/std <= sigma {
			kept = append(kept, n)
		}
	}
	return kept
}
