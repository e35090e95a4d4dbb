package response

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperr.Validation("bad stem"), fiber.StatusBadRequest, CodeValidationError},
		{"not found", apperr.NotFound("job x not found"), fiber.StatusNotFound, CodeNotFound},
		{"busy", apperr.Busy("x"), fiber.StatusConflict, CodeJobBusy},
		{"model oom", apperr.Model("CUDA out of memory", nil), fiber.StatusInsufficientStorage, CodeInsufficientStorage},
		{"model", apperr.Model("timeout", nil), fiber.StatusBadGateway, CodeModelError},
		{"audio", apperr.AudioLoad("a.wav", errors.New("eof")), fiber.StatusUnprocessableEntity, CodeAudioLoad},
		{"conversion", apperr.Conversion("midi_generation", "boom", nil), fiber.StatusInternalServerError, CodeJobFailed},
		{"storage", apperr.Storage("disk", nil), fiber.StatusInternalServerError, CodeServiceError},
		{"plain", errors.New("x"), fiber.StatusInternalServerError, CodeServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("got %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}
