package storage

import (
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.mid")

	n, err := AtomicWriteFile(path, strings.NewReader("MThd"))
	if err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 bytes written, got %d", n)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "MThd" {
		t.Errorf("unexpected content %q, err %v", data, err)
	}
}

func TestAtomicWriteFile_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.mid")

	_, err := AtomicWriteFile(path, io.MultiReader(strings.NewReader("partial"), failingReader{}))
	if !errors.Is(err, apperr.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file at output path, stat err %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected temp file cleaned up, found %d entries", len(entries))
	}
}

func TestToken_RoundTrip(t *testing.T) {
	tok := Token{JobID: uuid.NewString(), Category: model.CategoryStems, Filename: "song_stem_vocals.wav"}
	s, err := EncodeToken(tok)
	if err != nil {
		t.Fatalf("EncodeToken failed: %v", err)
	}
	if strings.ContainsAny(s, "+/=") {
		t.Errorf("token is not URL safe: %s", s)
	}
	got, err := DecodeToken(s)
	if err != nil {
		t.Fatalf("DecodeToken failed: %v", err)
	}
	if got != tok {
		t.Errorf("round trip mismatch: %+v != %+v", got, tok)
	}
}

func rawToken(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestDecodeToken_Rejects(t *testing.T) {
	id := uuid.NewString()
	tests := []struct {
		name  string
		token string
	}{
		{"traversal", rawToken(`{"job_id":"` + id + `","category":"stems","filename":"../../etc/passwd"}`)},
		{"separator", rawToken(`{"job_id":"` + id + `","category":"stems","filename":"a/b.wav"}`)},
		{"backslash", rawToken(`{"job_id":"` + id + `","category":"stems","filename":"a\\b.wav"}`)},
		{"nul", rawToken(`{"job_id":"` + id + `","category":"stems","filename":"a\u0000.wav"}`)},
		{"empty filename", rawToken(`{"job_id":"` + id + `","category":"stems","filename":""}`)},
		{"absolute", rawToken(`{"job_id":"` + id + `","category":"stems","filename":"/etc/passwd"}`)},
		{"bad category", rawToken(`{"job_id":"` + id + `","category":"secrets","filename":"a.wav"}`)},
		{"bad job id", rawToken(`{"job_id":"../x","category":"stems","filename":"a.wav"}`)},
		{"not json", rawToken(`hello`)},
		{"not base64", "!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeToken(tt.token)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestStore_SaveOpenRemove(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	id := uuid.NewString()

	meta, err := s.Save(id, model.CategoryMIDI, "combined.mid", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if meta.Size != 4 || meta.Token == "" {
		t.Errorf("unexpected meta %+v", meta)
	}
	if want := filepath.Join(s.Root(), "midi", id, "combined.mid"); meta.Path != want {
		t.Errorf("expected path %s, got %s", want, meta.Path)
	}

	f, err := s.Open(id, model.CategoryMIDI, "combined.mid")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	f.Close()

	if err := s.RemoveJob(id); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if _, err := s.Stat(id, model.CategoryMIDI, "combined.mid"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after RemoveJob, got %v", err)
	}
}

func TestStore_PathRejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.Path(uuid.NewString(), model.CategoryStems, "../../etc/passwd"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStore_Health(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	h := s.Health()
	if len(h) != 3 || !Healthy(h) {
		t.Errorf("expected three healthy directories, got %+v", h)
	}

	os.RemoveAll(filepath.Join(s.Root(), "midi"))
	h = s.Health()
	if Healthy(h) || h["midi"].Exists {
		t.Errorf("expected midi directory reported missing, got %+v", h["midi"])
	}
}
