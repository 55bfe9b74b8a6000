// Package apperr holds the sentinel errors shared by services and transports.
package apperr

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrAlreadyExists        = errors.New("already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrPermissionDenied     = errors.New("permission denied")
	// ErrAlarmPermission means the alarm backend refused an exact one-shot alarm.
	ErrAlarmPermission = errors.New("exact alarm permission missing")
)
