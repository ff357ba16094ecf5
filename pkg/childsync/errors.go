package childsync

import "errors"

var (
	// ErrRemoteUnavailable indicates a network or store failure on a remote call.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrNotFound indicates the remote store no longer recognizes a server id.
	ErrNotFound = errors.New("record not found in remote store")

	// ErrValidation indicates a record was rejected before any remote interaction.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownRecord indicates a local key that is not in the cache.
	ErrUnknownRecord = errors.New("unknown local record")

	// ErrParentNotCreated is returned by operations that need a parent id.
	ErrParentNotCreated = errors.New("parent not created")

	// ErrParentAlreadyCreated is returned when the parent transition is attempted twice.
	ErrParentAlreadyCreated = errors.New("parent already created")
)
