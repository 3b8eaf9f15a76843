package models

import (
	"time"
)

// CandidateProfile holds a candidate's preferences and embedding.
// Email is unique; profiles are created from waitlist records and updated
// through the candidate API.
type CandidateProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`

	// Preferences
	RoleFamilies  []RoleFamily   `json:"role_families,omitempty"`
	Seniority     Seniority      `json:"seniority,omitempty"`
	MinSalary     *int           `json:"min_salary,omitempty"`
	Locations     []string       `json:"locations,omitempty"`
	LocationTypes []LocationType `json:"location_types,omitempty"`
	// RoleTypes uses candidate-facing vocabulary (permanent, contract,
	// freelance); permanent maps to full_time on the job side
	RoleTypes  []string `json:"role_types,omitempty"`
	Skills     []string `json:"skills,omitempty"`
	Exclusions []string `json:"exclusions,omitempty"` // company names to skip

	// ProfileText is free text describing the candidate, typically the
	// extracted text of an uploaded resume
	ProfileText string `json:"profile_text,omitempty"`

	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	EmbeddingText  string    `json:"embedding_text,omitempty"`

	IsActive       bool       `json:"is_active"`
	LastMatchedAt  *time.Time `json:"last_matched_at,omitempty"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WaitlistRecord is the external waitlist shape consumed by the
// sync-from-waitlist endpoint
type WaitlistRecord struct {
	Email         string   `json:"email" validate:"required,email"`
	Name          string   `json:"name,omitempty"`
	RoleFamilies  []string `json:"role_families,omitempty"`
	Seniority     string   `json:"seniority,omitempty"`
	MinSalary     *int     `json:"min_salary,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	LocationTypes []string `json:"location_types,omitempty"`
	RoleTypes     []string `json:"role_types,omitempty"`
	Skills        []string `json:"skills,omitempty"`
}
