package model

// AudioData is a decoded sample buffer. Samples are interleaved when
// Channels > 1 and normalized to [-1, 1].
type AudioData struct {
	Samples    []float64
	SampleRate int
	Channels   int
	Duration   float64
	SourcePath string
}

// NewAudioData builds an AudioData and derives its duration
func NewAudioData(samples []float64, sampleRate, channels int) *AudioData {
	if channels < 1 {
		channels = 1
	}
	a := &AudioData{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}
	if sampleRate > 0 {
		a.Duration = float64(len(samples)/channels) / float64(sampleRate)
	}
	return a
}

// Frames returns the number of sample frames
func (a *AudioData) Frames() int {
	if a.Channels <= 1 {
		return len(a.Samples)
	}
	return len(a.Samples) / a.Channels
}

// Mono returns a down-mixed copy of the buffer. Single-channel buffers are
// returned as-is.
func (a *AudioData) Mono() []float64 {
	if a.Channels <= 1 {
		return a.Samples
	}
	n := a.Frames()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for c := 0; c < a.Channels; c++ {
			sum += a.Samples[i*a.Channels+c]
		}
		out[i] = sum / float64(a.Channels)
	}
	return out
}
