package match

import (
	"math"
	"sort"

	"github.com/ternarybob/jobhound/internal/models"
)

// scoredJob pairs a catalog job with its cosine similarity to the
// candidate embedding
type scoredJob struct {
	job        *models.Job
	similarity float64
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// Zero-length vectors and dimension mismatches score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// topKBySimilarity scores every catalog job against the candidate vector
// and returns the top k at or above minSimilarity, best first
func topKBySimilarity(embedding []float32, catalog []*models.Job, k int, minSimilarity float64) []scoredJob {
	scored := make([]scoredJob, 0, len(catalog))
	for _, job := range catalog {
		sim := cosineSimilarity(embedding, job.Embedding)
		if sim < minSimilarity {
			continue
		}
		scored = append(scored, scoredJob{job: job, similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].similarity > scored[j].similarity
	})

	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
