package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// EmbeddingService generates vector embeddings
type EmbeddingService interface {
	// Generate embedding for raw text using the document task type
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate and set embeddings for a batch of jobs
	EmbedJobs(ctx context.Context, jobs []*models.Job) error

	// Generate and set the embedding for a candidate profile
	EmbedCandidate(ctx context.Context, candidate *models.CandidateProfile) error

	// Generate query embedding (uses a different task type than documents)
	GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
