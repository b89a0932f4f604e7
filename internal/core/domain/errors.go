package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrDirectory      = errors.New("directory error")
	ErrUpdateFailed   = errors.New("update failed")
	ErrUploadFailed   = errors.New("upload failed")
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrParse          = errors.New("parse error")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrTemporary      = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ParseError reports an analysis payload that does not have the shape
// expected for its document type.
type ParseError struct {
	Type  DocumentType
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse ")
	b.WriteString(string(e.Type))
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// AnalysisError carries the payload the analysis service returned with a
// failed job.
type AnalysisError struct {
	JobID   string
	Stage   string
	Payload string
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("analysis %s failed", e.Stage)
	if e.JobID != "" {
		msg += " for job " + e.JobID
	}
	if p := strings.TrimSpace(e.Payload); p != "" {
		msg += ": " + p
	}
	return msg
}

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysisFailed }
