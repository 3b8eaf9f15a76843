package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/llm"
)

// Task types for the Gemini embeddings API. Document and query vectors
// are asymmetric; the API tunes each for its side of retrieval.
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// Service implements EmbeddingService using the Gemini embeddings API.
// Long inputs are chunked and mean-pooled into a single vector. Safe for
// concurrent use.
type Service struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *llm.RetryConfig
}

// NewService creates the embedding service. The API key resolves from the
// environment, then the KV store, then the config file.
func NewService(geminiConfig *common.GeminiConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) (*Service, error) {
	ctx := context.Background()
	apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required for embeddings (set via JOBHOUND_GEMINI_API_KEY, the KV store, or gemini.api_key in config): %w", err)
	}

	if geminiConfig.EmbeddingModel == "" {
		geminiConfig.EmbeddingModel = "text-embedding-004"
	}
	if geminiConfig.EmbeddingDim <= 0 {
		geminiConfig.EmbeddingDim = 384
	}
	if geminiConfig.BatchSize <= 0 {
		geminiConfig.BatchSize = 32
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &Service{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: common.ParseDurationOr(geminiConfig.Timeout, 60*time.Second),
		retry:   llm.NewDefaultRetryConfig(),
	}

	logger.Info().
		Str("model", geminiConfig.EmbeddingModel).
		Int("dimension", geminiConfig.EmbeddingDim).
		Int("batch_size", geminiConfig.BatchSize).
		Msg("Embedding service initialized")

	return service, nil
}

// GenerateEmbedding creates a document vector for the given text. Texts
// longer than the chunk size are split, embedded per chunk, and
// mean-pooled.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	start := time.Now()
	chunks := chunkText(text)
	vector, err := s.embedChunks(ctx, chunks, taskTypeDocument)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("text_length", len(text)).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return vector, nil
}

// GenerateQueryEmbedding creates a query-side vector for semantic search
// against document embeddings.
func (s *Service) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty for embedding generation")
	}
	return s.embedChunks(ctx, chunkText(query), taskTypeQuery)
}

// EmbedJobs generates vectors for jobs whose embedding inputs changed
// since the last run. Jobs with unchanged text under the same model are
// skipped. Short texts batch across jobs; long texts chunk per job.
// Mutates the given jobs; the caller persists them.
func (s *Service) EmbedJobs(ctx context.Context, jobs []*models.Job) error {
	type pending struct {
		job  *models.Job
		text string
	}

	var short, long []pending
	skipped := 0
	for _, job := range jobs {
		text := BuildJobText(job)
		if text == "" {
			s.logger.Warn().Str("job_id", job.ID).Msg("Job has no embeddable content, skipping")
			continue
		}
		if len(job.Embedding) == s.config.EmbeddingDim &&
			job.EmbeddingText == text &&
			job.EmbeddingModel == s.config.EmbeddingModel {
			skipped++
			continue
		}
		if len(text) > chunkSize {
			long = append(long, pending{job, text})
		} else {
			short = append(short, pending{job, text})
		}
	}

	if len(short) == 0 && len(long) == 0 {
		s.logger.Debug().Int("skipped", skipped).Msg("No jobs need embedding")
		return nil
	}

	now := time.Now()

	for start := 0; start < len(short); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(short) {
			end = len(short)
		}
		batch := short[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		vectors, err := s.embedBatch(ctx, texts, taskTypeDocument)
		if err != nil {
			return fmt.Errorf("failed to embed job batch: %w", err)
		}
		for i, p := range batch {
			s.applyJobEmbedding(p.job, p.text, vectors[i], now)
		}
	}

	for _, p := range long {
		vector, err := s.embedChunks(ctx, chunkText(p.text), taskTypeDocument)
		if err != nil {
			return fmt.Errorf("failed to embed job %s: %w", p.job.ID, err)
		}
		s.applyJobEmbedding(p.job, p.text, vector, now)
	}

	s.logger.Info().
		Int("embedded", len(short)+len(long)).
		Int("chunked", len(long)).
		Int("skipped", skipped).
		Msg("Job embeddings generated")

	return nil
}

// EmbedCandidate generates the profile vector for a candidate. A no-op
// when the embedding inputs are unchanged under the current model.
func (s *Service) EmbedCandidate(ctx context.Context, candidate *models.CandidateProfile) error {
	text := BuildCandidateText(candidate)
	if text == "" {
		return fmt.Errorf("candidate %s has no embeddable content", candidate.ID)
	}

	if len(candidate.Embedding) == s.config.EmbeddingDim &&
		candidate.EmbeddingText == text &&
		candidate.EmbeddingModel == s.config.EmbeddingModel {
		return nil
	}

	vector, err := s.GenerateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed candidate %s: %w", candidate.ID, err)
	}

	candidate.Embedding = vector
	candidate.EmbeddingText = text
	candidate.EmbeddingModel = s.config.EmbeddingModel
	candidate.UpdatedAt = time.Now()

	s.logger.Debug().
		Str("candidate_id", candidate.ID).
		Int("text_length", len(text)).
		Msg("Candidate embedding generated")

	return nil
}

// ModelName returns the embedding model identifier persisted alongside
// each vector.
func (s *Service) ModelName() string {
	return s.config.EmbeddingModel
}

// Dimension returns the configured output dimensionality.
func (s *Service) Dimension() int {
	return s.config.EmbeddingDim
}

// IsAvailable probes the embeddings API with a minimal request.
func (s *Service) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.embedBatch(probeCtx, []string{"ping"}, taskTypeDocument)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Embedding service not available")
		return false
	}
	return true
}

// embedChunks embeds each chunk, batching calls, and mean-pools the
// chunk vectors into one.
func (s *Service) embedChunks(ctx context.Context, chunks []string, taskType string) ([]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.embedBatch(ctx, chunks[start:end], taskType)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return meanPool(vectors), nil
}

// embedBatch issues one EmbedContent call for up to BatchSize texts,
// retrying on rate limits with the delay the API suggests when present.
func (s *Service) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	outputDim := int32(s.config.EmbeddingDim)
	embedConfig := &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &outputDim,
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	var result *genai.EmbedContentResponse
	var err error

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.retry.CalculateBackoff(attempt-1, llm.ExtractRetryDelay(err))
			s.logger.Warn().
				Int("attempt", attempt).
				Int("max_retries", s.retry.MaxRetries).
				Dur("backoff", backoff).
				Msg("Embedding API rate limited, backing off")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		result, err = s.client.Models.EmbedContent(attemptCtx, s.config.EmbeddingModel, contents, embedConfig)
		cancel()

		if err == nil {
			break
		}
		if !llm.IsRateLimitError(err) {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("embedding request failed after %d retries: %w", s.retry.MaxRetries, err)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range result.Embeddings {
		if embedding == nil || len(embedding.Values) != s.config.EmbeddingDim {
			got := 0
			if embedding != nil {
				got = len(embedding.Values)
			}
			return nil, fmt.Errorf("embedding dimension mismatch at index %d: expected %d, got %d", i, s.config.EmbeddingDim, got)
		}
		vectors[i] = embedding.Values
	}

	return vectors, nil
}

func (s *Service) applyJobEmbedding(job *models.Job, text string, vector []float32, now time.Time) {
	job.Embedding = vector
	job.EmbeddingText = text
	job.EmbeddingModel = s.config.EmbeddingModel
	job.UpdatedAt = now
}
