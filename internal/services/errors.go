package services

import "errors"

// Dashboard service errors
var (
	// ErrDatasetNotLoaded is returned before the first table is stored
	ErrDatasetNotLoaded = errors.New("dataset not loaded")
)
