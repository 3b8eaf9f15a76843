package embed

import (
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

// Chunking constants for long text embedding. Chunk size is roughly 1500
// tokens, safe under the embedding model's 2048 token input limit.
const (
	chunkSize = 6000
	// chunkOverlap preserves context across chunk boundaries
	chunkOverlap = 500
	// boundaryLookback is how far back a chunk end may move to land on a
	// word boundary
	boundaryLookback = 200
)

// BuildJobText assembles the embedding input for a job. The full
// description is included; long texts are handled by chunking, not
// truncation. Structure puts the most important content first: what the
// role is, then the description, then supporting metadata.
func BuildJobText(job *models.Job) string {
	parts := make([]string, 0, 7)

	title := job.Title
	if job.Seniority != "" {
		title = capitalize(string(job.Seniority)) + " " + title
	}
	parts = append(parts, title)

	if job.Description != "" {
		parts = append(parts, job.Description)
	}
	if len(job.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(job.Skills, ", "))
	}
	if job.RoleFamily != "" {
		parts = append(parts, "Role: "+string(job.RoleFamily))
	}
	if job.RoleSpecialization != "" {
		parts = append(parts, "Specialization: "+job.RoleSpecialization)
	}
	if len(job.Locations) > 0 {
		parts = append(parts, "Location: "+strings.Join(job.Locations, ", "))
	}
	if job.LocationType != "" {
		parts = append(parts, "Work type: "+string(job.LocationType))
	}

	return strings.Join(parts, " ")
}

// BuildCandidateText assembles the embedding input for a candidate
// profile: stated preferences first, then the free profile text (usually
// extracted resume content).
func BuildCandidateText(candidate *models.CandidateProfile) string {
	parts := make([]string, 0, 4)

	if len(candidate.RoleFamilies) > 0 {
		names := make([]string, len(candidate.RoleFamilies))
		for i, family := range candidate.RoleFamilies {
			names[i] = string(family)
		}
		parts = append(parts, "Roles: "+strings.Join(names, ", "))
	}
	if candidate.Seniority != "" {
		parts = append(parts, "Seniority: "+string(candidate.Seniority))
	}
	if len(candidate.Skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(candidate.Skills, ", "))
	}
	if candidate.ProfileText != "" {
		parts = append(parts, candidate.ProfileText)
	}

	return strings.Join(parts, " ")
}

// chunkText splits text into overlapping chunks. Chunk ends move back up
// to boundaryLookback characters to break on a space instead of
// mid-word.
func chunkText(text string) []string {
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			window := text[end-boundaryLookback : end]
			if b := strings.LastIndexByte(window, ' '); b >= 0 {
				end = end - boundaryLookback + b
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}
		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// meanPool averages chunk vectors into a single vector. Cosine similarity
// is scale invariant, so the pooled vector is not re-normalized.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}

	pooled := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			pooled[i] += v
		}
	}

	n := float32(len(vectors))
	for i := range pooled {
		pooled[i] /= n
	}

	return pooled
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
