package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/auth"
	"github.com/makeasinger/midiconv/internal/dsp"
	"github.com/makeasinger/midiconv/internal/handler"
	"github.com/makeasinger/midiconv/internal/middleware"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/repository"
	"github.com/makeasinger/midiconv/internal/service"
	"github.com/makeasinger/midiconv/internal/storage"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app     *fiber.App
	manager *service.StemJobManager
}

type appOptions struct {
	separatorErr error
	checks       map[string]handler.Check
	// holdConvert queues conversions without running them
	holdConvert bool
	convertErr  error
}

// queueDispatcher separates inline but only records conversions, like a
// worker pool that has not picked the task up yet
type queueDispatcher struct {
	*service.InlineDispatcher
	err    error
	queued []string
}

func (d *queueDispatcher) DispatchConvert(ctx context.Context, jobID string, opts service.ConvertOptions) error {
	if d.err != nil {
		return d.err
	}
	d.queued = append(d.queued, jobID)
	return nil
}

type stubSeparator struct {
	stems map[string][]byte
	err   error
}

func (s stubSeparator) Separate(ctx context.Context, path string) (map[string][]byte, error) {
	return s.stems, s.err
}

// setupApp creates a Fiber app wired like main.go but on local storage,
// the in-memory job store and the inline dispatcher, so no Redis is needed.
func setupApp(t *testing.T) *testApp {
	return setupAppWith(t, appOptions{})
}

func setupAppWith(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	jobs := repository.NewMemoryJobStore()
	validate := validator.New()

	manager := service.NewStemJobManager(service.Deps{
		Store:  store,
		Jobs:   jobs,
		Locker: repository.NewMemoryLocker(),
		Separator: stubSeparator{
			stems: map[string][]byte{
				model.StemVocals: toneWAV(t, 440),
				model.StemDrums:  toneWAV(t, 110),
				model.StemBass:   toneWAV(t, 82.41),
				model.StemOther:  toneWAV(t, 261.63),
			},
			err: opts.separatorErr,
		},
		Converter:      pipeline.New(audio.WAVLoader{}, dsp.NewPitchTracker(), nil, dsp.NewTempoTracker()),
		Validate:       validate,
		RetainUploads:  true,
		RetainStems:    true,
		MaxUploadBytes: 10 * 1024 * 1024,
	})
	var dispatcher service.Dispatcher = service.NewInlineDispatcher(manager, false)
	if opts.holdConvert || opts.convertErr != nil {
		dispatcher = &queueDispatcher{InlineDispatcher: service.NewInlineDispatcher(manager, false), err: opts.convertErr}
	}

	checks := opts.checks
	if checks == nil {
		checks = map[string]handler.Check{"jobStore": jobs.Ping}
	}

	jobHandler := handler.NewJobHandler(manager, dispatcher, validate)
	downloadHandler := handler.NewDownloadHandler(manager)
	healthHandler := handler.NewHealthHandler(manager, checks)

	authenticator := auth.NewAuthenticator(nil, testJWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)
	authMiddleware := middleware.NewAuthMiddleware(authenticator)
	rateLimiter := middleware.NewRateLimiter(nil)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", healthHandler.Health)
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())
	api.Post("/separate", rateLimiter.SeparateLimit(10000), jobHandler.Separate)
	api.Post("/convert-to-midi", rateLimiter.ConvertLimit(10000), jobHandler.Convert)
	api.Get("/jobs/:jobId", jobHandler.Status)
	api.Post("/jobs/:jobId/reset", jobHandler.Reset)
	api.Delete("/jobs/:jobId", jobHandler.Delete)
	api.Get("/download/:token", downloadHandler.Download)
	api.Get("/stream/:token", downloadHandler.Stream)

	return &testApp{app: app, manager: manager}
}

func toneWAV(t *testing.T, freq float64) []byte {
	t.Helper()
	const rate = 22050
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := audio.Encode(f, model.NewAudioData(samples, rate, 1)); err != nil {
		t.Fatalf("failed to encode WAV: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// generateToken creates a legacy HMAC JWT for the given user.
func generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := auth.SignLegacyToken(testJWTSecret, userID, userID+"@example.com", "", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as test-user.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + generateToken(t, "test-user"),
	})
}

// doUpload posts a multipart file to /api/separate. An empty token sends
// no Authorization header.
func doUpload(t *testing.T, app *fiber.App, filename string, data []byte, token string) (*http.Response, error) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, "/api/separate", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return app.Test(req, -1)
}

// uploadSong uploads a tone as test-user and returns the job id.
func uploadSong(t *testing.T, ta *testApp) string {
	t.Helper()
	resp, err := doUpload(t, ta.app, "song.wav", toneWAV(t, 440), generateToken(t, "test-user"))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	body := parseJSON(t, resp)
	jobID, _ := body["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected jobId in response, got %v", body)
	}
	return jobID
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// errorCode extracts error.code from an error envelope.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}

var (
	errSeparatorDown = errors.New("separator unavailable")
	errQueueDown     = errors.New("queue unavailable")
)
