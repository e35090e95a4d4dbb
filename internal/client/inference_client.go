package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/config"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/transcribe"
)

// InferenceClient talks to the model service that runs stem separation
// and polyphonic transcription.
type InferenceClient struct {
	httpClient *http.Client
	baseURL    string
	device     string
}

// SeparateRequest is the body of POST /separate
type SeparateRequest struct {
	Filename string `json:"filename"`
	Audio    string `json:"audio"` // base64
	Device   string `json:"device,omitempty"`
}

// SeparateResponse maps stem names to base64 WAV data
type SeparateResponse struct {
	Stems map[string]string `json:"stems"`
}

// TranscribeRequest is the body of POST /transcribe
type TranscribeRequest struct {
	Audio  string `json:"audio"` // base64 WAV
	Device string `json:"device,omitempty"`
}

// TranscribeResponse lists detected note events
type TranscribeResponse struct {
	Notes []transcribe.Event `json:"notes"`
}

// NewInferenceClient creates a client for the model service
func NewInferenceClient(cfg *config.InferenceConfig) *InferenceClient {
	return &InferenceClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.ServiceURL, "/"),
		device:  cfg.Device,
	}
}

// Separate sends the file at path to the separator and returns WAV bytes per stem
func (c *InferenceClient) Separate(ctx context.Context, path string) (map[string][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.AudioLoad(path, err)
	}

	req := &SeparateRequest{
		Filename: filepath.Base(path),
		Audio:    base64.StdEncoding.EncodeToString(data),
		Device:   c.device,
	}
	var result SeparateResponse
	if err := c.post(ctx, "/separate", req, &result); err != nil {
		return nil, err
	}
	if len(result.Stems) == 0 {
		return nil, apperr.Model("separator returned no stems", nil)
	}

	stems := make(map[string][]byte, len(result.Stems))
	for name, encoded := range result.Stems {
		wav, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apperr.Model(fmt.Sprintf("invalid audio for stem %s", name), err)
		}
		stems[name] = wav
	}
	return stems, nil
}

// Events implements transcribe.EventSource
func (c *InferenceClient) Events(ctx context.Context, data *model.AudioData) ([]transcribe.Event, error) {
	wav, err := encodeWAV(data)
	if err != nil {
		return nil, apperr.Model("failed to encode audio for transcription", err)
	}

	req := &TranscribeRequest{
		Audio:  base64.StdEncoding.EncodeToString(wav),
		Device: c.device,
	}
	var result TranscribeResponse
	if err := c.post(ctx, "/transcribe", req, &result); err != nil {
		return nil, err
	}
	return result.Notes, nil
}

// HealthCheck checks if the model service is available
func (c *InferenceClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// IsConfigured returns true if the client has a service URL
func (c *InferenceClient) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

// post sends a JSON request. Every failure is a model error so callers can
// apply the fallback policy.
func (c *InferenceClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return apperr.Model("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return apperr.Model("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Model("failed to send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Model("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Model(fmt.Sprintf("inference service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return apperr.Model("failed to unmarshal response", err)
	}
	return nil
}

// encodeWAV renders data as 16-bit PCM. The WAV encoder needs a seekable
// writer, so it goes through a temp file.
func encodeWAV(data *model.AudioData) ([]byte, error) {
	f, err := os.CreateTemp("", "midiconv-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := audio.Encode(f, data); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}
