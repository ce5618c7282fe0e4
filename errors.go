package concord

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("concord: no store configured")
	ErrStoreClosed     = errors.New("concord: store closed")
	ErrMigrationFailed = errors.New("concord: migration failed")

	// Not found errors.
	ErrWorkflowNotFound = errors.New("concord: workflow not found")

	// Conflict errors.
	ErrWorkflowExists = errors.New("concord: workflow already exists")

	// Input errors. These are reported at initiation; the workflow
	// never starts.
	ErrNoParties = errors.New("concord: no parties specified")
	ErrNoChanges = errors.New("concord: no proposed changes specified")

	// State errors.
	ErrInvalidState        = errors.New("concord: invalid state transition")
	ErrMaxRetriesExceeded  = errors.New("concord: max retries exceeded")
	ErrMaxRoundsExceeded   = errors.New("concord: maximum review rounds exceeded")
	ErrWorkflowTerminal    = errors.New("concord: workflow already in a terminal state")
	ErrMalformedResolution = errors.New("concord: malformed mediation output")
)
