package storage

import (
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// Token addresses one artifact without exposing filesystem paths
type Token struct {
	JobID    string         `json:"job_id"`
	Category model.Category `json:"category"`
	Filename string         `json:"filename"`
}

// Validate checks every field so a decoded token can only name a file
// directly inside its job directory.
func (t Token) Validate() error {
	if _, err := uuid.Parse(t.JobID); err != nil {
		return apperr.Validation("invalid job id in token")
	}
	if !t.Category.Valid() {
		return apperr.Validation("invalid category %q", t.Category)
	}
	return ValidateFilename(t.Filename)
}

// ValidateFilename rejects names that could escape a job directory
func ValidateFilename(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return apperr.Validation("invalid filename")
	case strings.Contains(name, ".."):
		return apperr.Validation("filename must not contain '..'")
	case strings.ContainsAny(name, "/\\"):
		return apperr.Validation("filename must not contain path separators")
	case strings.ContainsRune(name, 0):
		return apperr.Validation("filename must not contain NUL")
	case filepath.IsAbs(name):
		return apperr.Validation("filename must be relative")
	}
	return nil
}

// EncodeToken returns the URL-safe form of t
func EncodeToken(t Token) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", apperr.Validation("failed to encode token: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken parses and validates a token string
func DecodeToken(s string) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return Token{}, apperr.Validation("invalid token encoding")
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, apperr.Validation("invalid token payload")
	}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}
