// Package separate splits an uploaded mix into instrument stems.
package separate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// Separator returns WAV bytes per stem name for the audio file at path
type Separator interface {
	Separate(ctx context.Context, path string) (map[string][]byte, error)
}

// Passthrough treats the whole mix as a single "mix" stem. Only WAV input
// is accepted since stems are stored as WAV.
type Passthrough struct{}

func (Passthrough) Separate(ctx context.Context, path string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return nil, apperr.AudioLoad(path, errors.New("unsupported format without a separation model"))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.AudioLoad(path, err)
	}
	return map[string][]byte{model.StemMix: data}, nil
}

// StemFilename names a stem file after the upload, e.g. song_stem_vocals.wav
func StemFilename(upload, stem string) string {
	base := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	return base + "_stem_" + stem + ".wav"
}
