package service

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/dsp"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/repository"
	"github.com/makeasinger/midiconv/internal/storage"
)

const testRate = 22050

func wavBytes(t *testing.T, freq float64) []byte {
	t.Helper()
	samples := make([]float64, testRate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	f, err := os.CreateTemp(t.TempDir(), "*.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := audio.Encode(f, model.NewAudioData(samples, testRate, 1)); err != nil {
		t.Fatalf("failed to encode WAV: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

type fakeSeparator struct {
	stems map[string][]byte
	err   error
	calls int
}

func (f *fakeSeparator) Separate(ctx context.Context, path string) (map[string][]byte, error) {
	f.calls++
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return f.stems, f.err
}

func fourStems(t *testing.T) map[string][]byte {
	return map[string][]byte{
		model.StemVocals: wavBytes(t, 440),
		model.StemDrums:  wavBytes(t, 110),
		model.StemBass:   wavBytes(t, 82.41),
		model.StemOther:  wavBytes(t, 261.63),
	}
}

func newTestManager(t *testing.T, sep *fakeSeparator) *StemJobManager {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewStemJobManager(Deps{
		Store:         store,
		Jobs:          repository.NewMemoryJobStore(),
		Locker:        repository.NewMemoryLocker(),
		Separator:     sep,
		Converter:     pipeline.New(audio.WAVLoader{}, dsp.NewPitchTracker(), nil, dsp.NewTempoTracker()),
		RetainUploads: true,
		RetainStems:   true,
	})
}

func upload(t *testing.T, m *StemJobManager, name string) *model.Job {
	t.Helper()
	data := wavBytes(t, 440)
	job, err := m.Upload(context.Background(), UploadInput{
		TenantID: "user-1",
		Filename: name,
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return job
}

func TestStemJobManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sep := &fakeSeparator{stems: fourStems(t)}
	m := newTestManager(t, sep)

	job := upload(t, m, "song.wav")
	if job.Status != model.JobStatusUploaded {
		t.Fatalf("expected uploaded, got %s", job.Status)
	}

	stems, err := m.Separate(ctx, job.ID)
	if err != nil {
		t.Fatalf("Separate failed: %v", err)
	}
	if len(stems) != 4 {
		t.Fatalf("expected 4 stems, got %d", len(stems))
	}
	if stems[model.StemVocals].Filename != "song_stem_vocals.wav" {
		t.Errorf("unexpected stem filename %s", stems[model.StemVocals].Filename)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Status != model.JobStatusSeparated {
		t.Fatalf("expected separated, got %s", got.Status)
	}

	// separating again reuses the stems
	if _, err := m.Separate(ctx, job.ID); err != nil || sep.calls != 1 {
		t.Errorf("expected idempotent separate, err=%v calls=%d", err, sep.calls)
	}

	res, err := m.Convert(ctx, job.ID, ConvertOptions{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Cached || res.Artifact.Filename != CombinedFilename {
		t.Errorf("unexpected result %+v", res)
	}

	path, err := m.Store.Path(job.ID, model.CategoryMIDI, CombinedFilename)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("combined MIDI missing: %v", err)
	}
	defer f.Close()
	s, err := smf.ReadFrom(f)
	if err != nil {
		t.Fatalf("invalid MIDI: %v", err)
	}
	if len(s.Tracks) != 4 {
		t.Errorf("expected 4 tracks, got %d", len(s.Tracks))
	}

	got, _ = m.Get(ctx, job.ID)
	if got.Status != model.JobStatusConverted || got.Result == nil || got.Result.Tracks != 4 {
		t.Errorf("unexpected job after convert: status=%s result=%+v", got.Status, got.Result)
	}
	if strings.Join(got.ConvertedStems, ",") != "vocals,drums,bass,other" {
		t.Errorf("unexpected converted stems %v", got.ConvertedStems)
	}

	again, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"other", "bass", "drums", "vocals"}})
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}
	if !again.Cached {
		t.Error("expected cached result for the same selection")
	}
}

func TestStemJobManager_RecomputeWithNewSelection(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Convert(ctx, job.ID, ConvertOptions{}); err != nil {
		t.Fatal(err)
	}

	res, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"bass", "vocals"}})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Cached || res.Summary.Tracks != 2 {
		t.Errorf("expected fresh 2-track conversion, got %+v", res)
	}

	forced, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"bass", "vocals"}, Force: true})
	if err != nil {
		t.Fatalf("forced Convert failed: %v", err)
	}
	if forced.Cached {
		t.Error("force must recompute")
	}
}

func TestStemJobManager_UnknownStem(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	_, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"kazoo"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Status != model.JobStatusSeparated {
		t.Errorf("validation failure must not change status, got %s", got.Status)
	}
}

func TestStemJobManager_ConvertBeforeSeparate(t *testing.T) {
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")

	if _, err := m.Convert(context.Background(), job.ID, ConvertOptions{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStemJobManager_BusyJob(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")

	unlock, err := m.Locker.TryLock(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Separate(ctx, job.ID); !errors.Is(err, apperr.ErrJobBusy) {
		t.Errorf("expected busy, got %v", err)
	}
	unlock()
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Errorf("Separate after unlock failed: %v", err)
	}
}

func TestStemJobManager_SeparationFailure(t *testing.T) {
	ctx := context.Background()
	sep := &fakeSeparator{err: apperr.Model("CUDA out of memory", nil)}
	m := newTestManager(t, sep)
	job := upload(t, m, "song.wav")

	_, err := m.Separate(ctx, job.ID)
	if !apperr.IsOutOfMemory(err) {
		t.Fatalf("expected out-of-memory model error, got %v", err)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Status != model.JobStatusFailed || got.Error == nil {
		t.Fatalf("expected failed job with error, got %s", got.Status)
	}
	entries, _ := os.ReadDir(filepath.Join(m.Store.Root(), "stems", job.ID))
	if len(entries) != 0 {
		t.Errorf("expected no stems after failure, found %d", len(entries))
	}

	if _, err := m.Separate(ctx, job.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected reset required, got %v", err)
	}

	sep.err = nil
	sep.stems = fourStems(t)
	if _, err := m.Reset(ctx, job.ID, model.JobStatusUploaded); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Errorf("Separate after reset failed: %v", err)
	}
}

func TestStemJobManager_ResetToSeparatedRemovesMIDI(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	m.Separate(ctx, job.ID)
	if _, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"vocals"}}); err != nil {
		t.Fatal(err)
	}

	reset, err := m.Reset(ctx, job.ID, model.JobStatusSeparated)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if reset.Status != model.JobStatusSeparated || reset.MidiArtifact != nil {
		t.Errorf("unexpected job after reset: %+v", reset)
	}
	if _, err := m.Store.Stat(job.ID, model.CategoryMIDI, CombinedFilename); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected MIDI removed, got %v", err)
	}

	if _, err := m.Reset(ctx, job.ID, model.JobStatusConverting); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for invalid reset target, got %v", err)
	}
}

func TestStemJobManager_Retention(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	m.RetainUploads = false
	m.RetainStems = false

	job := upload(t, m, "song.wav")
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Upload != nil {
		t.Error("expected upload dropped after separation")
	}
	if _, err := m.Reset(ctx, job.ID, model.JobStatusUploaded); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("reset to uploaded without an upload should fail, got %v", err)
	}

	if _, err := m.Convert(ctx, job.ID, ConvertOptions{}); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Get(ctx, job.ID)
	if len(got.Stems) != 0 {
		t.Error("expected stems dropped after conversion")
	}
	entries, _ := os.ReadDir(filepath.Join(m.Store.Root(), "stems", job.ID))
	if len(entries) != 0 {
		t.Errorf("expected stem files removed, found %d", len(entries))
	}

	// the artifact still answers a repeat once the stems are gone
	repeats := []ConvertOptions{
		{},
		{StemNames: got.ConvertedStems},
		{StemNames: []string{"other", "bass", "drums", "vocals"}},
	}
	for _, opts := range repeats {
		checked, err := m.ClaimConvert(ctx, job.ID, opts)
		if err != nil || checked == nil || !checked.Cached {
			t.Errorf("ClaimConvert(%v) = %+v, %v; want cached", opts.StemNames, checked, err)
		}
		res, err := m.Convert(ctx, job.ID, opts)
		if err != nil {
			t.Fatalf("repeat Convert(%v) failed: %v", opts.StemNames, err)
		}
		if !res.Cached || res.Artifact.Filename != CombinedFilename {
			t.Errorf("repeat Convert(%v) = %+v, want cached artifact", opts.StemNames, res)
		}
	}

	if _, err := m.Convert(ctx, job.ID, ConvertOptions{StemNames: []string{"bass"}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("new selection without stems should be a validation error, got %v", err)
	}
}

func TestStemJobManager_ClaimConvert(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	if _, err := m.Separate(ctx, job.ID); err != nil {
		t.Fatal(err)
	}

	cached, err := m.ClaimConvert(ctx, job.ID, ConvertOptions{})
	if err != nil || cached != nil {
		t.Fatalf("ClaimConvert = %+v, %v; want a fresh claim", cached, err)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Status != model.JobStatusConverting {
		t.Fatalf("expected converting after claim, got %s", got.Status)
	}

	if _, err := m.ClaimConvert(ctx, job.ID, ConvertOptions{StemNames: []string{"bass"}}); !errors.Is(err, apperr.ErrJobBusy) {
		t.Errorf("second claim should be busy, got %v", err)
	}

	m.ReleaseConvert(ctx, job.ID)
	got, _ = m.Get(ctx, job.ID)
	if got.Status != model.JobStatusSeparated {
		t.Fatalf("expected separated after release, got %s", got.Status)
	}

	if _, err := m.ClaimConvert(ctx, job.ID, ConvertOptions{}); err != nil {
		t.Fatal(err)
	}
	res, err := m.Convert(ctx, job.ID, ConvertOptions{})
	if err != nil {
		t.Fatalf("Convert after claim failed: %v", err)
	}
	if res.Cached || res.Summary.Tracks != 4 {
		t.Errorf("unexpected result %+v", res)
	}
	m.ReleaseConvert(ctx, job.ID)
	got, _ = m.Get(ctx, job.ID)
	if got.Status != model.JobStatusConverted {
		t.Errorf("release must not touch a converted job, got %s", got.Status)
	}
}

func TestStemJobManager_Resolve(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	stems, err := m.Separate(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}

	path, tok, err := m.Resolve(ctx, stems[model.StemBass].Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tok.Category != model.CategoryStems || filepath.Base(path) != "song_stem_bass.wav" {
		t.Errorf("unexpected resolution %s %+v", path, tok)
	}

	evil, _ := storage.EncodeToken(storage.Token{JobID: job.ID, Category: model.CategoryStems, Filename: "x.wav"})
	if _, _, err := m.Resolve(ctx, evil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for missing file, got %v", err)
	}
	if _, _, err := m.Resolve(ctx, "not-a-token"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStemJobManager_UploadValidation(t *testing.T) {
	m := newTestManager(t, &fakeSeparator{})
	m.MaxUploadBytes = 10

	_, err := m.Upload(context.Background(), UploadInput{Filename: "notes.txt", Body: strings.NewReader("x")})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for extension, got %v", err)
	}

	_, err = m.Upload(context.Background(), UploadInput{Filename: "big.wav", Body: strings.NewReader(strings.Repeat("x", 100))})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for size, got %v", err)
	}
}

func TestStemJobManager_Delete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	job := upload(t, m, "song.wav")
	m.Separate(ctx, job.ID)

	if err := m.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get(ctx, job.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	for _, c := range []string{"uploads", "stems", "midi"} {
		if _, err := os.Stat(filepath.Join(m.Store.Root(), c, job.ID)); !os.IsNotExist(err) {
			t.Errorf("expected %s directory removed", c)
		}
	}
}

func TestInlineDispatcher(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, &fakeSeparator{stems: fourStems(t)})
	d := NewInlineDispatcher(m, false)
	job := upload(t, m, "song.wav")

	if err := d.DispatchSeparate(ctx, job.ID); err != nil {
		t.Fatal(err)
	}
	if err := d.DispatchConvert(ctx, job.ID, ConvertOptions{StemNames: []string{"vocals"}}); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Get(ctx, job.ID)
	if got.Status != model.JobStatusConverted {
		t.Errorf("expected converted, got %s", got.Status)
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewConvertTask("job-1", ConvertOptions{StemNames: []string{"bass"}, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskTypeConvert {
		t.Errorf("unexpected task type %s", task.Type())
	}
	p, err := ParseTaskPayload(task.Payload())
	if err != nil {
		t.Fatal(err)
	}
	if p.JobID != "job-1" || p.Options == nil || !p.Options.Force || p.Options.StemNames[0] != "bass" {
		t.Errorf("unexpected payload %+v", p)
	}
	if _, err := ParseTaskPayload([]byte(`{}`)); err == nil {
		t.Error("expected error for missing job id")
	}
}
