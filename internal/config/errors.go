package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrNoInput          = errors.New("input path is required")
	ErrNoOutput         = errors.New("output path is required")
	ErrSameInputOutput  = errors.New("input and output must be different files")
	ErrNoCompetitor     = errors.New("competitor is required: pass --competitor or set COMPETITOR")
	ErrInvalidBackend   = errors.New(`invalid search backend: must be "cse" or "gemini"`)
	ErrInvalidWorkers   = errors.New("invalid workers: must be positive")
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")
	ErrInvalidTimeout   = errors.New("invalid request timeout: must be non-negative")
	ErrInvalidTemp      = errors.New("invalid temperature: must be between 0 and 2")
	ErrNoModel          = errors.New("model name is required")

	// ErrConfigNotFound is returned when an explicitly requested config file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
