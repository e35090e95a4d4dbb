package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/makeasinger/midiconv/internal/accel"
	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/audio"
	"github.com/makeasinger/midiconv/internal/client"
	"github.com/makeasinger/midiconv/internal/midi"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/pipeline"
	"github.com/makeasinger/midiconv/internal/progress"
	"github.com/makeasinger/midiconv/internal/repository"
	"github.com/makeasinger/midiconv/internal/separate"
	"github.com/makeasinger/midiconv/internal/storage"
)

// CombinedFilename is the merged multi-track MIDI artifact of a job
const CombinedFilename = "combined.mid"

// Notifier receives job events, typically the websocket hub
type Notifier interface {
	progress.Observer
	BroadcastProgress(jobID string, percent int, status model.JobStatus, step string)
	BroadcastComplete(jobID string, status model.JobStatus, result interface{})
	BroadcastError(jobID, code, stage, message string)
}

// Converter runs the note pipeline for one stem
type Converter interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error)
}

// Deps wires a StemJobManager
type Deps struct {
	Store     *storage.Store
	Jobs      repository.JobStore
	Locker    repository.JobLocker
	Separator separate.Separator
	Converter Converter
	Guard     *accel.Handle
	// Mirror is optional object storage for the combined MIDI
	Mirror   client.ObjectStore
	Notifier Notifier
	Validate *validator.Validate
	Defaults model.ConversionConfig

	RetainUploads  bool
	RetainStems    bool
	MaxUploadBytes int64
}

// StemJobManager sequences upload, separation and conversion per job
type StemJobManager struct {
	Deps
}

func NewStemJobManager(d Deps) *StemJobManager {
	if d.Validate == nil {
		d.Validate = validator.New()
	}
	if d.Guard == nil {
		d.Guard = accel.New("cpu")
	}
	if d.Defaults == (model.ConversionConfig{}) {
		d.Defaults = model.DefaultConversionConfig()
	}
	return &StemJobManager{Deps: d}
}

// UploadInput is one uploaded audio file
type UploadInput struct {
	TenantID string
	Filename string
	Size     int64
	Body     io.Reader
	// nil keeps the service default
	RetainUploads *bool
	RetainStems   *bool
}

// ConvertOptions selects stems and overrides for a conversion
type ConvertOptions struct {
	StemNames []string                `json:"stemNames,omitempty"`
	Force     bool                    `json:"force,omitempty"`
	Config    *model.ConversionConfig `json:"config,omitempty"`
}

// ConvertResult is the artifact of a conversion
type ConvertResult struct {
	Artifact  model.FileMeta           `json:"midiArtifact"`
	StemNames []string                 `json:"stemNames"`
	Cached    bool                     `json:"cached"`
	Summary   *model.ConversionSummary `json:"result,omitempty"`
}

// Upload stores a new file and creates its job in the uploaded state
func (m *StemJobManager) Upload(ctx context.Context, in UploadInput) (*model.Job, error) {
	name := sanitizeFilename(in.Filename)
	if !audio.IsSupported(name) {
		return nil, apperr.Validation("unsupported file type %q, expected one of %s",
			filepath.Ext(name), strings.Join(audio.SupportedExtensions, ", "))
	}
	if m.MaxUploadBytes > 0 && in.Size > m.MaxUploadBytes {
		return nil, apperr.Validation("file exceeds the %d MB limit", m.MaxUploadBytes/(1024*1024))
	}
	if err := storage.ValidateFilename(name); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()
	body := in.Body
	if m.MaxUploadBytes > 0 {
		body = io.LimitReader(body, m.MaxUploadBytes+1)
	}
	meta, err := m.Store.Save(jobID, model.CategoryUploads, name, body)
	if err != nil {
		return nil, err
	}
	if m.MaxUploadBytes > 0 && meta.Size > m.MaxUploadBytes {
		m.Store.RemoveJob(jobID)
		return nil, apperr.Validation("file exceeds the %d MB limit", m.MaxUploadBytes/(1024*1024))
	}

	now := time.Now()
	job := &model.Job{
		ID:            jobID,
		TenantID:      in.TenantID,
		Status:        model.JobStatusUploaded,
		CurrentStep:   "Uploaded",
		Upload:        &meta,
		RetainUploads: boolOr(in.RetainUploads, m.RetainUploads),
		RetainStems:   boolOr(in.RetainStems, m.RetainStems),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := m.Jobs.Save(ctx, job); err != nil {
		m.Store.RemoveJob(jobID)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	log.Printf("Job %s created for %s (%d bytes)", jobID, name, meta.Size)
	return job, nil
}

// Get returns a job
func (m *StemJobManager) Get(ctx context.Context, jobID string) (*model.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, apperr.Validation("invalid job id")
	}
	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	m.fillTokens(job)
	return job, nil
}

// Separate splits the upload into stems. Stems become visible only once all
// of them are stored.
func (m *StemJobManager) Separate(ctx context.Context, jobID string) (map[string]model.FileMeta, error) {
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch {
	case job.Status == model.JobStatusFailed:
		return nil, apperr.Validation("job %s failed, reset it before separating again", jobID)
	case job.Status.Rank() >= model.JobStatusSeparated.Rank() && len(job.Stems) > 0:
		m.fillTokens(job)
		return job.Stems, nil
	case job.Status != model.JobStatusUploaded && job.Status != model.JobStatusSeparating:
		// a separating job found under the lock is left over from a crashed run
		return nil, apperr.Validation("job %s cannot be separated from status %s", jobID, job.Status)
	}
	if job.Upload == nil {
		return nil, apperr.Validation("job %s has no retained upload", jobID)
	}

	log.Printf("Starting separate job: %s", jobID)
	m.transition(ctx, job, model.JobStatusSeparating, 10, "Separating stems")

	uploadPath, err := m.Store.Path(jobID, model.CategoryUploads, job.Upload.Filename)
	if err != nil {
		return nil, m.fail(ctx, job, err)
	}

	var raw map[string][]byte
	err = m.Guard.Do(ctx, job.TenantID, func(ctx context.Context) error {
		var sepErr error
		raw, sepErr = m.Separator.Separate(ctx, uploadPath)
		return sepErr
	})
	if err != nil {
		return nil, m.fail(ctx, job, stage(err, "separation"))
	}
	if len(raw) == 0 {
		return nil, m.fail(ctx, job, apperr.Model("separator returned no stems", nil))
	}

	m.progress(job, 40, "Writing stems")
	stems := make(map[string]model.FileMeta, len(raw))
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := storage.ValidateFilename(name); err != nil {
			m.Store.RemoveCategory(jobID, model.CategoryStems)
			return nil, m.fail(ctx, job, apperr.Model(fmt.Sprintf("invalid stem name %q", name), nil))
		}
		meta, err := m.Store.Save(jobID, model.CategoryStems, separate.StemFilename(job.Upload.Filename, name), bytes.NewReader(raw[name]))
		if err != nil {
			// no partial stem sets
			m.Store.RemoveCategory(jobID, model.CategoryStems)
			return nil, m.fail(ctx, job, stage(err, "separation"))
		}
		stems[name] = meta
	}

	job.Stems = stems
	job.Error = nil
	if !job.RetainUploads {
		if err := m.Store.RemoveCategory(jobID, model.CategoryUploads); err != nil {
			log.Printf("Failed to remove upload for job %s: %v", jobID, err)
		} else {
			job.Upload = nil
		}
	}
	m.transition(ctx, job, model.JobStatusSeparated, 50, "Stems ready")
	if err := m.Jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if m.Notifier != nil {
		m.Notifier.BroadcastComplete(jobID, model.JobStatusSeparated, stems)
	}
	log.Printf("Separate job %s completed with %d stems", jobID, len(stems))
	return stems, nil
}

// ClaimConvert validates a conversion request and reserves the job for it.
// A non-nil result means the existing artifact already satisfies the
// request and nothing needs to run. Otherwise the job is moved to
// converting under its lock, so a concurrent request is rejected with
// ErrJobBusy before anything is queued.
func (m *StemJobManager) ClaimConvert(ctx context.Context, jobID string, opts ConvertOptions) (*ConvertResult, error) {
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := convertable(job, false); err != nil {
		return nil, err
	}
	if _, err := m.conversionConfig(job, opts); err != nil {
		return nil, err
	}
	if cached := m.cached(job, opts); cached != nil {
		return cached, nil
	}
	if _, err := selectStems(job, opts.StemNames); err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusConverted {
		if err := m.resetTo(ctx, job, model.JobStatusSeparated); err != nil {
			return nil, err
		}
	}
	m.transition(ctx, job, model.JobStatusConverting, 52, "Queued for conversion")
	return nil, nil
}

// ReleaseConvert undoes ClaimConvert when the conversion could not be
// queued. A job that already moved on is left alone.
func (m *StemJobManager) ReleaseConvert(ctx context.Context, jobID string) {
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		log.Printf("Failed to release convert claim on job %s: %v", jobID, err)
		return
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil || job.Status != model.JobStatusConverting {
		return
	}
	job.Status = model.JobStatusSeparated
	job.Progress = 50
	job.CurrentStep = "Conversion not queued"
	job.UpdatedAt = time.Now()
	if err := m.Jobs.Save(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", job.ID, err)
	}
}

// Convert transcribes the selected stems and merges them into one MIDI file
func (m *StemJobManager) Convert(ctx context.Context, jobID string, opts ConvertOptions) (*ConvertResult, error) {
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := convertable(job, true); err != nil {
		return nil, err
	}
	cfg, err := m.conversionConfig(job, opts)
	if err != nil {
		return nil, err
	}
	if cached := m.cached(job, opts); cached != nil {
		return cached, nil
	}
	names, err := selectStems(job, opts.StemNames)
	if err != nil {
		return nil, err
	}
	if job.Status == model.JobStatusConverted {
		// recompute with a new selection
		if err := m.resetTo(ctx, job, model.JobStatusSeparated); err != nil {
			return nil, err
		}
	}

	log.Printf("Starting convert job: %s (%s)", jobID, strings.Join(names, ", "))
	job.Config = &cfg
	m.transition(ctx, job, model.JobStatusConverting, 55, "Converting stems")

	var tracks []midi.Track
	summary := &model.ConversionSummary{}
	var tempoConfidence float64
	for i, name := range names {
		path, err := m.Store.Path(jobID, model.CategoryStems, job.Stems[name].Filename)
		if err != nil {
			return nil, m.fail(ctx, job, err)
		}
		percent := 55 + 40*i/len(names)
		m.progress(job, percent, "Converting "+name)

		req := pipeline.Request{
			InputPath: path,
			Config:    cfg,
			Stem:      name,
			JobID:     jobID,
		}
		if m.Notifier != nil {
			req.Observer = m.Notifier
		}

		var out *pipeline.Output
		run := func(ctx context.Context) error {
			var runErr error
			out, runErr = m.Converter.Run(ctx, req)
			return runErr
		}
		if cfg.UseAI {
			err = m.Guard.Do(ctx, job.TenantID, run)
		} else {
			err = run(ctx)
		}
		if err != nil {
			return nil, m.fail(ctx, job, err)
		}

		tracks = append(tracks, midi.Track{Name: name, Notes: out.Notes})
		summary.NotesFiltered += out.NotesFiltered
		summary.NoteCount += len(out.Notes)
		summary.QuantizationApplied = summary.QuantizationApplied || out.QuantizationApplied
		if out.Tempo.Known && out.Tempo.Confidence >= tempoConfidence {
			bpm := out.Tempo.BPM
			summary.DetectedTempo = &bpm
			tempoConfidence = out.Tempo.Confidence
		}
	}
	summary.Tracks = len(tracks)

	if err := ctx.Err(); err != nil {
		return nil, m.fail(ctx, job, apperr.Cancelled(pipeline.StageGeneration, err))
	}
	m.progress(job, 95, "Writing MIDI")
	bpm := cfg.DefaultTempo
	if summary.DetectedTempo != nil {
		bpm = *summary.DetectedTempo
	}
	data, err := midi.Encode(tracks, bpm)
	if err != nil {
		return nil, m.fail(ctx, job, apperr.Conversion(pipeline.StageGeneration, "failed to encode MIDI", err))
	}
	meta, err := m.Store.Save(jobID, model.CategoryMIDI, CombinedFilename, bytes.NewReader(data))
	if err != nil {
		return nil, m.fail(ctx, job, stage(err, pipeline.StageGeneration))
	}
	m.mirror(ctx, jobID, &meta, data)

	job.MidiArtifact = &meta
	job.ConvertedStems = names
	job.Result = summary
	job.Error = nil
	if !job.RetainStems {
		if err := m.Store.RemoveCategory(jobID, model.CategoryStems); err != nil {
			log.Printf("Failed to remove stems for job %s: %v", jobID, err)
		} else {
			job.Stems = nil
		}
	}
	m.transition(ctx, job, model.JobStatusConverted, 100, "Completed")
	if err := m.Jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	result := &ConvertResult{Artifact: meta, StemNames: names, Summary: summary}
	if m.Notifier != nil {
		m.Notifier.BroadcastComplete(jobID, model.JobStatusConverted, result)
	}
	log.Printf("Convert job %s completed: %d tracks, %d notes", jobID, summary.Tracks, summary.NoteCount)
	return result, nil
}

// Reset moves a job back to uploaded or separated, deleting the artifacts
// of later stages first.
func (m *StemJobManager) Reset(ctx context.Context, jobID string, to model.JobStatus) (*model.Job, error) {
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := m.resetTo(ctx, job, to); err != nil {
		return nil, err
	}
	m.fillTokens(job)
	return job, nil
}

func (m *StemJobManager) resetTo(ctx context.Context, job *model.Job, to model.JobStatus) error {
	switch to {
	case model.JobStatusUploaded:
		if job.Upload == nil {
			return apperr.Validation("job %s has no retained upload", job.ID)
		}
		if _, err := m.Store.Stat(job.ID, model.CategoryUploads, job.Upload.Filename); err != nil {
			return apperr.Validation("job %s upload is no longer available", job.ID)
		}
		if err := m.Store.RemoveCategory(job.ID, model.CategoryMIDI); err != nil {
			return err
		}
		if err := m.Store.RemoveCategory(job.ID, model.CategoryStems); err != nil {
			return err
		}
		job.Stems = nil
		job.Progress = 0
	case model.JobStatusSeparated:
		if len(job.Stems) == 0 {
			return apperr.Validation("job %s has no stems", job.ID)
		}
		if err := m.Store.RemoveCategory(job.ID, model.CategoryMIDI); err != nil {
			return err
		}
		job.Progress = 50
	default:
		return apperr.Validation("cannot reset to %s", to)
	}
	m.unmirror(ctx, job)

	job.MidiArtifact = nil
	job.ConvertedStems = nil
	job.Result = nil
	job.Error = nil
	job.Status = to
	job.CurrentStep = "Reset to " + string(to)
	job.UpdatedAt = time.Now()
	if err := m.Jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	log.Printf("Job %s reset to %s", job.ID, to)
	return nil
}

// Delete removes every artifact of a job, then the job record
func (m *StemJobManager) Delete(ctx context.Context, jobID string) error {
	if _, err := uuid.Parse(jobID); err != nil {
		return apperr.Validation("invalid job id")
	}
	unlock, err := m.Locker.TryLock(ctx, jobID)
	if err != nil {
		return err
	}
	defer unlock()

	job, err := m.Jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if err := m.Store.RemoveJob(jobID); err != nil {
		return err
	}
	m.unmirror(ctx, job)
	if err := m.Jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	log.Printf("Job %s deleted", jobID)
	return nil
}

// Resolve maps a download token to a file on disk
func (m *StemJobManager) Resolve(ctx context.Context, token string) (string, storage.Token, error) {
	t, err := storage.DecodeToken(token)
	if err != nil {
		return "", storage.Token{}, err
	}
	if _, err := m.Jobs.Get(ctx, t.JobID); err != nil {
		return "", storage.Token{}, err
	}
	if _, err := m.Store.Stat(t.JobID, t.Category, t.Filename); err != nil {
		return "", storage.Token{}, err
	}
	path, err := m.Store.Path(t.JobID, t.Category, t.Filename)
	if err != nil {
		return "", storage.Token{}, err
	}
	return path, t, nil
}

// StorageHealth reports the artifact directories
func (m *StemJobManager) StorageHealth() map[string]model.DirectoryHealth {
	return m.Store.Health()
}

func (m *StemJobManager) conversionConfig(job *model.Job, opts ConvertOptions) (model.ConversionConfig, error) {
	cfg := m.Defaults
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := m.Validate.Struct(cfg); err != nil {
		return cfg, apperr.Validation("invalid conversion config: %v", err)
	}
	return cfg, nil
}

// cached returns the stored artifact when the request repeats the last
// conversion. An empty selection repeats it too once the stems are gone.
func (m *StemJobManager) cached(job *model.Job, opts ConvertOptions) *ConvertResult {
	if opts.Force || job.Status != model.JobStatusConverted || job.MidiArtifact == nil {
		return nil
	}
	want := opts.StemNames
	if len(want) == 0 {
		want = job.StemNames()
		if len(want) == 0 {
			want = job.ConvertedStems
		}
	}
	if !sameStems(job.ConvertedStems, want) {
		return nil
	}
	if _, err := m.Store.Stat(job.ID, model.CategoryMIDI, job.MidiArtifact.Filename); err != nil {
		return nil
	}
	m.fillTokens(job)
	return &ConvertResult{Artifact: *job.MidiArtifact, StemNames: job.ConvertedStems, Cached: true, Summary: job.Result}
}

func (m *StemJobManager) transition(ctx context.Context, job *model.Job, to model.JobStatus, percent int, step string) {
	if job.Status != to && !model.CanTransition(job.Status, to) {
		log.Printf("Warning: unexpected transition %s -> %s for job %s", job.Status, to, job.ID)
	}
	job.Status = to
	job.Progress = percent
	job.CurrentStep = step
	job.UpdatedAt = time.Now()
	if err := m.Jobs.Save(ctx, job); err != nil {
		log.Printf("Failed to save job %s: %v", job.ID, err)
	}
	if m.Notifier != nil {
		m.Notifier.BroadcastProgress(job.ID, percent, to, step)
	}
}

func (m *StemJobManager) progress(job *model.Job, percent int, step string) {
	job.Progress = percent
	job.CurrentStep = step
	if m.Notifier != nil {
		m.Notifier.BroadcastProgress(job.ID, percent, job.Status, step)
	}
}

// fail records err on the job and returns it. The job record is saved with
// a fresh context so a cancelled run still ends up failed.
func (m *StemJobManager) fail(ctx context.Context, job *model.Job, err error) error {
	msg := err.Error()
	job.Status = model.JobStatusFailed
	job.Error = &msg
	job.UpdatedAt = time.Now()

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := m.Jobs.Save(saveCtx, job); saveErr != nil {
		log.Printf("Failed to save failed job %s: %v", job.ID, saveErr)
	}
	if m.Notifier != nil {
		m.Notifier.BroadcastError(job.ID, string(apperr.KindOf(err)), apperr.StageOf(err), msg)
	}
	log.Printf("Job %s failed: %v", job.ID, err)
	return err
}

func (m *StemJobManager) mirror(ctx context.Context, jobID string, meta *model.FileMeta, data []byte) {
	if m.Mirror == nil {
		return
	}
	key := client.ArtifactKey(jobID, string(model.CategoryMIDI), meta.Filename)
	if err := m.Mirror.Upload(ctx, key, bytes.NewReader(data), "audio/midi"); err != nil {
		log.Printf("Failed to mirror MIDI for job %s: %v", jobID, err)
		return
	}
	url, err := m.Mirror.SignedURL(ctx, key)
	if err != nil {
		log.Printf("Failed to sign MIDI URL for job %s: %v", jobID, err)
		return
	}
	meta.URL = url
}

func (m *StemJobManager) unmirror(ctx context.Context, job *model.Job) {
	if m.Mirror == nil || job.MidiArtifact == nil || job.MidiArtifact.URL == "" {
		return
	}
	key := client.ArtifactKey(job.ID, string(model.CategoryMIDI), job.MidiArtifact.Filename)
	if err := m.Mirror.Delete(ctx, key); err != nil {
		log.Printf("Failed to delete mirrored MIDI for job %s: %v", job.ID, err)
	}
}

// fillTokens recomputes download tokens, which are not persisted for
// artifacts that predate them.
func (m *StemJobManager) fillTokens(job *model.Job) {
	set := func(category model.Category, meta *model.FileMeta) {
		if meta.Token != "" {
			return
		}
		if tok, err := storage.EncodeToken(storage.Token{JobID: job.ID, Category: category, Filename: meta.Filename}); err == nil {
			meta.Token = tok
		}
	}
	if job.Upload != nil {
		set(model.CategoryUploads, job.Upload)
	}
	for name, meta := range job.Stems {
		set(model.CategoryStems, &meta)
		job.Stems[name] = meta
	}
	if job.MidiArtifact != nil {
		set(model.CategoryMIDI, job.MidiArtifact)
	}
}

// convertable checks the job status. locked means the caller holds the job
// lock, so a converting status is stale rather than in progress.
func convertable(job *model.Job, locked bool) error {
	switch job.Status {
	case model.JobStatusSeparated, model.JobStatusConverted:
		return nil
	case model.JobStatusConverting:
		if locked {
			return nil
		}
		return apperr.Busy(job.ID)
	case model.JobStatusFailed:
		return apperr.Validation("job %s failed, reset it before converting", job.ID)
	default:
		return apperr.Validation("job %s is not separated yet (status %s)", job.ID, job.Status)
	}
}

// selectStems validates the requested names against the job's stems. An
// empty request selects every stem.
func selectStems(job *model.Job, requested []string) ([]string, error) {
	all := job.StemNames()
	if len(all) == 0 {
		return nil, apperr.Validation("job %s has no stems", job.ID)
	}
	if len(requested) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		if _, ok := job.Stems[name]; !ok {
			return nil, apperr.Validation("unknown stem %q, available: %s", name, strings.Join(all, ", "))
		}
		want[name] = true
	}
	names := make([]string, 0, len(want))
	for _, name := range all {
		if want[name] {
			names = append(names, name)
		}
	}
	return names, nil
}

// sameStems compares two selections ignoring order and duplicates
func sameStems(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	set := make(map[string]bool, len(a))
	for _, name := range a {
		set[name] = true
	}
	seen := make(map[string]bool, len(b))
	for _, name := range b {
		if !set[name] {
			return false
		}
		seen[name] = true
	}
	return len(seen) == len(set)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.ReplaceAll(name, " ", "_")
}

func stage(err error, name string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithStage(name)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Cancelled(name, err)
	}
	return apperr.Conversion(name, "unexpected failure", err)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
