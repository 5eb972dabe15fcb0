// Package common defines shared constants and sentinel errors used across
// lexisync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Sync-session errors.
	ErrorNotAuthenticated = errors.New("not authenticated")
	ErrorNotConfigured    = errors.New("server not configured")

	// Grant-specific errors.
	ErrorDuplicateGrant = errors.New("collection already shared with user")
)
