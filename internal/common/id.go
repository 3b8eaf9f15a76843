package common

import (
	"github.com/google/uuid"
)

// NewID generates a unique entity identifier
func NewID() string {
	return uuid.New().String()
}

// NewRunID generates a pipeline run identifier with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// ShortID returns the first eight characters of an identifier for logging
func ShortID(id string) string {
	trimmed := id
	if idx := len("run_"); len(id) > idx && id[:idx] == "run_" {
		trimmed = id[idx:]
	}
	if len(trimmed) > 8 {
		return trimmed[:8]
	}
	return trimmed
}
