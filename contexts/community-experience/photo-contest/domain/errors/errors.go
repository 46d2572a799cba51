package errors

import "errors"

var (
	ErrInvalidPhaseTransition  = errors.New("invalid phase transition")
	ErrDuplicateSlot           = errors.New("participant already holds a submission slot")
	ErrAlreadyArmed            = errors.New("tie-break round already armed or resolving")
	ErrExternalCapability      = errors.New("external capability failure")
	ErrInternal                = errors.New("internal error")
	ErrNotModerator            = errors.New("moderator capability required")
	ErrNoQualifyingSubmissions = errors.New("no qualifying submissions")
	ErrInvalidTieDuration      = errors.New("invalid tie-break duration")
	ErrInvalidSubmission       = errors.New("invalid submission input")
	ErrStaleRound              = errors.New("round superseded while external call was pending")
	ErrNotArmed                = errors.New("tie-break round is not armed")
)
