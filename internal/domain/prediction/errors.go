package prediction

import (
	"errors"
	"fmt"
)

var (
	ErrNoData                  = errors.New("no input data provided")
	ErrMalformedInput          = errors.New("malformed input")
	ErrFeatureMismatch         = errors.New("prepared features do not match fitted artifacts")
	ErrArtifactIncompatibility = errors.New("classifier rejected prepared features")
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindMalformedInput          Kind = "malformed_input"
	KindFeatureMismatch         Kind = "feature_mismatch"
	KindArtifactIncompatibility Kind = "artifact_incompatibility"
)

// Stage is a step of the prediction state machine.
type Stage string

const (
	StageReceived   Stage = "received"
	StageNormalized Stage = "normalized"
	StageDerived    Stage = "derived"
	StagePrepared   Stage = "prepared"
	StagePredicted  Stage = "predicted"
	StageFailed     Stage = "failed"
)

// Error is the failure value returned across the pipeline boundary.
// Stage is the last stage the request reached before failing.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s at stage %s: %s", e.Kind, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind, so callers can use
// errors.Is(err, ErrFeatureMismatch) without unpacking.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindMalformedInput:
		return target == ErrMalformedInput
	case KindFeatureMismatch:
		return target == ErrFeatureMismatch
	case KindArtifactIncompatibility:
		return target == ErrArtifactIncompatibility
	}
	return false
}

// Payload is the structured error body returned to callers.
type Payload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// Payload renders the error for a response body.
func (e *Error) Payload() Payload {
	p := Payload{Message: e.Message}
	switch e.Kind {
	case KindMalformedInput:
		if errors.Is(e.Err, ErrNoData) {
			return Payload{Error: "No data provided"}
		}
		p.Error = "Invalid input data"
	case KindFeatureMismatch:
		p.Error = "Prepared features do not match the fitted artifacts"
	case KindArtifactIncompatibility:
		p.Error = "Classifier rejected the prepared features"
	default:
		p.Error = "An error occurred during prediction"
	}
	if e.Err != nil {
		p.Details = e.Err.Error()
	}
	return p
}

// PayloadFor renders any error. Errors from outside the pipeline get the
// generic body.
func PayloadFor(err error) Payload {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Payload()
	}
	return Payload{Error: "An error occurred", Details: err.Error()}
}

func malformed(msg string, err error) *Error {
	return &Error{Kind: KindMalformedInput, Stage: StageReceived, Message: msg, Err: err}
}

func featureMismatch(stage Stage, format string, args ...any) *Error {
	return &Error{Kind: KindFeatureMismatch, Stage: stage, Message: fmt.Sprintf(format, args...)}
}

func artifactIncompatible(stage Stage, err error, format string, args ...any) *Error {
	return &Error{Kind: KindArtifactIncompatibility, Stage: stage, Message: fmt.Sprintf(format, args...), Err: err}
}
