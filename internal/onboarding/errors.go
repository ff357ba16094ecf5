package onboarding

import "errors"

var (
	// ErrUnsynced reports rows that are still pending after a sync pass.
	ErrUnsynced = errors.New("rows not yet synced")

	// ErrNoFileStore is returned by AttachDocument when the session has no
	// document storage.
	ErrNoFileStore = errors.New("no document storage configured")
)
