package services

import "errors"

// Series service errors
var (
	ErrNoReportsFound = errors.New("no reports found")
	ErrNoBuilder      = errors.New("series builder not configured")
)
