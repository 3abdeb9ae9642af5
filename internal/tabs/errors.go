package tabs

import "errors"

var (
	// ErrInvalidReference means a window, profile, tab or group id does not resolve.
	ErrInvalidReference = errors.New("invalid reference")
	// ErrAlreadyDestroyed is returned by a second Destroy.
	ErrAlreadyDestroyed = errors.New("already destroyed")
	// ErrEmptyGroup means none of the requested tabs could join a new group.
	ErrEmptyGroup = errors.New("no tabs for group")
	// ErrNoTarget means no window or space could be chosen for a new tab.
	ErrNoTarget = errors.New("no target window or space")
	// ErrGroupFull means the group's mode does not accept another tab.
	ErrGroupFull = errors.New("tab group full")
	// ErrConsistency marks an internal registry inconsistency.
	ErrConsistency = errors.New("consistency violation")
	// ErrManagerDestroyed is returned by mutations after Destroy.
	ErrManagerDestroyed = errors.New("tab manager destroyed")
)
