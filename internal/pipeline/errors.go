// Package pipeline runs the two-stage classification of communication
// evidence: model intent classification, the deterministic policy overlay,
// and conditional structured extraction of order attributes.
package pipeline

import (
	"errors"
	"fmt"
)

// Pipeline stages, used for failure attribution.
const (
	StageClassify = "classify"
	StageExtract  = "extract"
	StageLegacy   = "legacy"
)

// MalformedResponse is raised when model output cannot be decoded even
// after fallback substring recovery. Raw carries the offending text so the
// failure is auditable; nothing is silently defaulted.
type MalformedResponse struct {
	Stage string
	Raw   string
	Err   error
}

func (e *MalformedResponse) Error() string {
	return fmt.Sprintf("%s: malformed model response: %v", e.Stage, e.Err)
}

func (e *MalformedResponse) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is (or wraps) a MalformedResponse.
func IsMalformed(err error) bool {
	var mr *MalformedResponse
	return errors.As(err, &mr)
}

// Failure records one communication's terminal error. Failures are
// collected per batch; they never abort the other communications.
type Failure struct {
	CommID string `json:"comm_id"`
	Stage  string `json:"stage"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s [%s]: %v", f.CommID, f.Stage, f.Err)
}
