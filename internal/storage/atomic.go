package storage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/makeasinger/midiconv/internal/apperr"
)

// AtomicWriteFile writes r to path through a temp file in the same directory,
// syncs it and renames it into place. On failure nothing exists at path and
// the temp file is removed.
func AtomicWriteFile(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, apperr.Storage("failed to create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, apperr.Storage("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, apperr.Storage("failed to write "+filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, apperr.Storage("failed to sync "+filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return 0, apperr.Storage("failed to close "+filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, apperr.Storage("failed to rename "+filepath.Base(path), err)
	}
	committed = true
	return n, nil
}
