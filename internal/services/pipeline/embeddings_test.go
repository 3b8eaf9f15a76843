package pipeline

import (
	"context"
	"testing"

	"github.com/ternarybob/jobhound/internal/models"
)

func seedJob(t *testing.T, env *pipelineEnv, job *models.Job) {
	t.Helper()
	if err := env.jobs.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
}

func seedCandidate(t *testing.T, env *pipelineEnv, candidate *models.CandidateProfile) {
	t.Helper()
	if err := env.candidates.SaveCandidate(context.Background(), candidate); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
}

func TestEmbeddingsCoverUnembeddedJobsAndActiveCandidates(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	seedJob(t, env, &models.Job{ID: "job1", CompanyID: "c1", Title: "Backend Engineer", Description: "Build the API tier.", IsActive: true})
	seedJob(t, env, &models.Job{ID: "job2", CompanyID: "c1", Title: "Data Engineer", Description: "Own the warehouse.", IsActive: true})
	seedJob(t, env, &models.Job{ID: "job3", CompanyID: "c1", Title: "Old Role", IsActive: false})
	seedCandidate(t, env, &models.CandidateProfile{
		ID:          "cand1",
		Email:       "dev@example.com",
		ProfileText: "Ten years of Go and distributed storage.",
		IsActive:    true,
	})
	seedCandidate(t, env, &models.CandidateProfile{
		ID:          "cand2",
		Email:       "gone@example.com",
		ProfileText: "Retired.",
		IsActive:    false,
	})

	run, err := env.svc.StartOperation(ctx, models.OpEmbeddings, models.RunParams{}, "manual")
	if err != nil {
		t.Fatalf("start embeddings: %v", err)
	}
	final := waitForRun(t, env, run.ID)
	if final.Status != models.RunStatusCompleted {
		t.Fatalf("embeddings failed: %s", final.Error)
	}

	if final.Stats.JobsEmbedded != 2 || final.Stats.CandidatesEmbedded != 1 {
		t.Fatalf("embedding counters off: %+v", final.Stats)
	}

	for _, id := range []string{"job1", "job2"} {
		job, err := env.jobs.GetJob(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if len(job.Embedding) != 8 || job.EmbeddingModel != "fake-embed" || job.EmbeddingText == "" {
			t.Fatalf("job %s not embedded: %+v", id, job)
		}
	}
	inactive, _ := env.jobs.GetJob(ctx, "job3")
	if len(inactive.Embedding) != 0 {
		t.Fatal("inactive job should not be embedded")
	}

	candidate, _ := env.candidates.GetCandidate(ctx, "cand1")
	if len(candidate.Embedding) != 8 {
		t.Fatal("active candidate was not embedded")
	}
	skipped, _ := env.candidates.GetCandidate(ctx, "cand2")
	if len(skipped.Embedding) != 0 {
		t.Fatal("inactive candidate should not be embedded")
	}
}

func TestEmbeddingsSkipUnchangedCandidates(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	seedCandidate(t, env, &models.CandidateProfile{
		ID:          "cand1",
		Email:       "dev@example.com",
		ProfileText: "Ten years of Go.",
		IsActive:    true,
	})

	first, err := env.svc.StartOperation(ctx, models.OpEmbeddings, models.RunParams{}, "manual")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	waitForRun(t, env, first.ID)

	second, err := env.svc.StartOperation(ctx, models.OpEmbeddings, models.RunParams{}, "manual")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	final := waitForRun(t, env, second.ID)

	// The profile text did not change, so the second pass re-embeds nothing
	if final.Stats.CandidatesEmbedded != 0 {
		t.Fatalf("unchanged candidate re-embedded: %+v", final.Stats)
	}
	env.embedder.mu.Lock()
	embedded := env.embedder.candidates
	env.embedder.mu.Unlock()
	if embedded != 1 {
		t.Fatalf("provider embedded %d candidates, want 1", embedded)
	}
}

func TestEmbeddingsFailWhenProviderUnavailable(t *testing.T) {
	env := newPipelineEnv(t)
	env.embedder.available = false

	run, err := env.svc.StartOperation(context.Background(), models.OpEmbeddings, models.RunParams{}, "manual")
	if err != nil {
		t.Fatalf("start embeddings: %v", err)
	}
	final := waitForRun(t, env, run.ID)
	if final.Status != models.RunStatusFailed {
		t.Fatal("run should fail when the provider is unavailable")
	}
}
