package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers unknown usernames, wrong passwords and inactive admins alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrNotFound            = errors.New("not found")
	ErrCompetitionNotFound = fmt.Errorf("competition %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	ErrWinnerNotFound      = fmt.Errorf("winner %w", ErrNotFound)
	ErrSettingNotFound     = fmt.Errorf("setting %w", ErrNotFound)

	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrStorageFailure    = errors.New("storage failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrArchiveDisabled   = errors.New("archive storage not configured")

	ErrCompetitionNotEnded = fmt.Errorf("%w: competition has not ended", ErrInvalidTransition)
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionErr(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
}
