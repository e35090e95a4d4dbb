package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// SupportedExtensions lists the upload formats accepted by the service.
// Only WAV is decoded in-process; other formats are handled by the
// inference service.
var SupportedExtensions = []string{".mp3", ".wav", ".flac", ".ogg"}

// IsSupported reports whether filename has an accepted extension
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Loader decodes an audio file into a sample buffer
type Loader interface {
	Load(ctx context.Context, path string) (*model.AudioData, error)
}

// WAVLoader decodes PCM WAV files
type WAVLoader struct{}

// Load reads and decodes path. Failures are AudioLoad errors.
func (WAVLoader) Load(ctx context.Context, path string) (*model.AudioData, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" {
		return nil, apperr.AudioLoad(path, fmt.Errorf("unsupported format %q", ext))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.AudioLoad(path, err)
	}
	defer f.Close()

	data, err := Decode(f)
	if err != nil {
		return nil, apperr.AudioLoad(path, err)
	}
	data.SourcePath = path
	return data, nil
}

// Decode reads a PCM WAV stream
func Decode(r io.ReadSeeker) (*model.AudioData, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("missing WAV format information")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}
	return model.NewAudioData(samples, buf.Format.SampleRate, buf.Format.NumChannels), nil
}

// Encode writes a as 16-bit PCM WAV
func Encode(w io.WriteSeeker, a *model.AudioData) error {
	const bitDepth = 16
	channels := a.Channels
	if channels < 1 {
		channels = 1
	}

	data := make([]int, len(a.Samples))
	for i, v := range a.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * 32767))
	}

	enc := wav.NewEncoder(w, a.SampleRate, bitDepth, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: a.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}
