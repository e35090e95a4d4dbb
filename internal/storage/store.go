package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// Store is the local artifact tree <root>/<category>/<job_id>/<filename>
type Store struct {
	root string
}

// NewStore creates the category directories under root
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	for _, c := range model.ValidCategories {
		if err := os.MkdirAll(filepath.Join(abs, string(c)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", c, err)
		}
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute storage root
func (s *Store) Root() string {
	return s.root
}

// Path returns the location of an artifact after validating its name
func (s *Store) Path(jobID string, category model.Category, filename string) (string, error) {
	t := Token{JobID: jobID, Category: category, Filename: filename}
	if err := t.Validate(); err != nil {
		return "", err
	}
	return filepath.Join(s.root, string(category), jobID, filename), nil
}

// Save writes r atomically and returns the artifact metadata with its token
func (s *Store) Save(jobID string, category model.Category, filename string, r io.Reader) (model.FileMeta, error) {
	path, err := s.Path(jobID, category, filename)
	if err != nil {
		return model.FileMeta{}, err
	}
	n, err := AtomicWriteFile(path, r)
	if err != nil {
		return model.FileMeta{}, err
	}
	token, err := EncodeToken(Token{JobID: jobID, Category: category, Filename: filename})
	if err != nil {
		return model.FileMeta{}, err
	}
	return model.FileMeta{Filename: filename, Size: n, Path: path, Token: token}, nil
}

// Open opens an artifact for reading
func (s *Store) Open(jobID string, category model.Category, filename string) (*os.File, error) {
	path, err := s.Path(jobID, category, filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("file %s not found", filename)
		}
		return nil, apperr.Storage("failed to open "+filename, err)
	}
	return f, nil
}

// Remove deletes one artifact. Missing files are not an error.
func (s *Store) Remove(jobID string, category model.Category, filename string) error {
	path, err := s.Path(jobID, category, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Storage("failed to remove "+filename, err)
	}
	return nil
}

// RemoveCategory deletes a job's directory in one category
func (s *Store) RemoveCategory(jobID string, category model.Category) error {
	if !category.Valid() {
		return apperr.Validation("invalid category %q", category)
	}
	t := Token{JobID: jobID, Category: category, Filename: "x"}
	if err := t.Validate(); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, string(category), jobID)); err != nil {
		return apperr.Storage(fmt.Sprintf("failed to remove %s for job %s", category, jobID), err)
	}
	return nil
}

// RemoveJob deletes a job's files in every category
func (s *Store) RemoveJob(jobID string) error {
	var errs []error
	for _, c := range model.ValidCategories {
		if err := s.RemoveCategory(jobID, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stat returns the size of an artifact, NotFound when absent
func (s *Store) Stat(jobID string, category model.Category, filename string) (int64, error) {
	path, err := s.Path(jobID, category, filename)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, apperr.NotFound("file %s not found", filename)
		}
		return 0, apperr.Storage("failed to stat "+filename, err)
	}
	if info.IsDir() {
		return 0, apperr.NotFound("file %s not found", filename)
	}
	return info.Size(), nil
}

// Health reports whether each category directory exists and is writable
func (s *Store) Health() map[string]model.DirectoryHealth {
	out := make(map[string]model.DirectoryHealth, len(model.ValidCategories))
	for _, c := range model.ValidCategories {
		dir := filepath.Join(s.root, string(c))
		h := model.DirectoryHealth{Path: dir}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			h.Exists = true
			if f, err := os.CreateTemp(dir, ".health-*"); err == nil {
				h.Writable = true
				f.Close()
				os.Remove(f.Name())
			}
		}
		out[string(c)] = h
	}
	return out
}

// Healthy reports whether every directory in h exists and is writable
func Healthy(h map[string]model.DirectoryHealth) bool {
	for _, d := range h {
		if !d.Exists || !d.Writable {
			return false
		}
	}
	return true
}
