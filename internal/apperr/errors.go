package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures so callers can map them to job status and
// HTTP responses.
type Kind string

const (
	KindAudioLoad  Kind = "audio_load"
	KindModel      Kind = "model"
	KindConversion Kind = "conversion"
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindNotFound   Kind = "not_found"
	KindBusy       Kind = "busy"
	KindCancelled  Kind = "cancelled"
)

// Sentinels for errors.Is matching on kind
var (
	ErrAudioLoad  = &Error{Kind: KindAudioLoad}
	ErrModel      = &Error{Kind: KindModel}
	ErrConversion = &Error{Kind: KindConversion}
	ErrValidation = &Error{Kind: KindValidation}
	ErrStorage    = &Error{Kind: KindStorage}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrJobBusy    = &Error{Kind: KindBusy}
	ErrCancelled  = &Error{Kind: KindCancelled}
)

// Error is a classified failure with the stage it happened in
type Error struct {
	Kind        Kind
	Stage       string
	Message     string
	Cause       error
	OutOfMemory bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Stage != "" {
		b.WriteString(" at ")
		b.WriteString(e.Stage)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a bare sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Cause != nil || t.Stage != "" {
		return e == t
	}
	return e.Kind == t.Kind
}

// WithStage returns a copy of e tagged with stage, keeping an existing stage
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	if cp.Stage == "" {
		cp.Stage = stage
	}
	return &cp
}

func AudioLoad(path string, cause error) *Error {
	return &Error{Kind: KindAudioLoad, Stage: "loading", Message: fmt.Sprintf("cannot load %q", path), Cause: cause}
}

func Model(message string, cause error) *Error {
	e := &Error{Kind: KindModel, Message: message, Cause: cause}
	e.OutOfMemory = mentionsOOM(message) || (cause != nil && mentionsOOM(cause.Error()))
	return e
}

func Conversion(stage, message string, cause error) *Error {
	return &Error{Kind: KindConversion, Stage: stage, Message: message, Cause: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Message: message, Cause: cause}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Busy(jobID string) *Error {
	return &Error{Kind: KindBusy, Message: fmt.Sprintf("job %s has a stage in progress", jobID)}
}

func Cancelled(stage string, cause error) *Error {
	return &Error{Kind: KindCancelled, Stage: stage, Message: "cancelled before stage start", Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StageOf returns the stage recorded on err, if any
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}

// IsOutOfMemory reports whether err is a model failure caused by exhausted
// accelerator memory.
func IsOutOfMemory(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindModel && e.OutOfMemory
}

func mentionsOOM(s string) bool {
	return strings.Contains(strings.ToLower(s), "out of memory")
}
