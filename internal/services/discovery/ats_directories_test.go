package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// fakeFetcher serves canned bodies keyed by URL. Unknown URLs come back
// as 404 errors, which doubles as the negative case for board checks.
type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	f.fetched = append(f.fetched, req.URL)
	body, ok := f.pages[req.URL]
	if !ok {
		return nil, models.HTTPError(404, fmt.Errorf("no page at %s", req.URL))
	}
	return &interfaces.FetchResult{
		URL:        req.URL,
		FinalURL:   req.URL,
		StatusCode: 200,
		Body:       []byte(body),
		FetchedAt:  time.Now(),
	}, nil
}

func (f *fakeFetcher) FetchJSON(_ context.Context, url string, out interface{}) error {
	return models.HTTPError(404, fmt.Errorf("no board at %s", url))
}

func (f *fakeFetcher) Close() error { return nil }

func TestATSDirectoriesProduce(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.greenhouse.io/customers": `<html><body>
			<a href="https://boards.greenhouse.io/acme">Acme</a>
			<a href="https://boards.greenhouse.io/embed/job_board?for=acme">Embed</a>
			<a href="/customers/stripe">Case study</a>
		</body></html>`,
		"https://boards.greenhouse.io/acme": "board",
	}}

	src := NewATSDirectoriesSource(fetcher, arbor.NewLogger())
	cands, err := src.Produce(context.Background(), 0)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}

	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(cands), cands)
	}
	got := cands[0]
	if got.Name != "Acme" {
		t.Errorf("name = %q, want Acme", got.Name)
	}
	if got.ATSType != models.ATSGreenhouse || got.ATSIdentifier != "acme" {
		t.Errorf("ats = %s/%s, want greenhouse/acme", got.ATSType, got.ATSIdentifier)
	}
	if got.CareersURL != "https://boards.greenhouse.io/acme" {
		t.Errorf("careers url = %q", got.CareersURL)
	}
	if got.Source != models.SourceATSDirectories {
		t.Errorf("source = %q", got.Source)
	}
}

func TestATSDirectoriesScriptFallback(t *testing.T) {
	// Board links only present in inline script text, no anchors
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.lever.co/customers": `<html><body>
			<script>var customers = ["https://jobs.lever.co/initech"];</script>
		</body></html>`,
		"https://jobs.lever.co/initech": "board",
	}}

	src := NewATSDirectoriesSource(fetcher, arbor.NewLogger())
	cands, err := src.Produce(context.Background(), 0)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}

	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(cands), cands)
	}
	if cands[0].ATSType != models.ATSLever || cands[0].ATSIdentifier != "initech" {
		t.Errorf("ats = %s/%s, want lever/initech", cands[0].ATSType, cands[0].ATSIdentifier)
	}
}

func TestATSDirectoriesUnverifiedBoardDropped(t *testing.T) {
	// Directory lists a board that no longer responds
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.greenhouse.io/customers": `<a href="https://boards.greenhouse.io/ghost">Ghost</a>`,
	}}

	src := NewATSDirectoriesSource(fetcher, arbor.NewLogger())
	cands, err := src.Produce(context.Background(), 0)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("got %d candidates, want 0: %+v", len(cands), cands)
	}
}

func TestATSDirectoriesLimit(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.greenhouse.io/customers": `<html><body>
			<a href="https://boards.greenhouse.io/acme">Acme</a>
			<a href="https://boards.greenhouse.io/initech">Initech</a>
		</body></html>`,
		"https://boards.greenhouse.io/acme":    "board",
		"https://boards.greenhouse.io/initech": "board",
	}}

	src := NewATSDirectoriesSource(fetcher, arbor.NewLogger())
	cands, err := src.Produce(context.Background(), 1)
	if err != nil {
		t.Fatalf("Produce() error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	if cands[0].ATSIdentifier != "acme" {
		t.Errorf("identifier = %q, want acme", cands[0].ATSIdentifier)
	}
}

func TestTitleizeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme", "Acme"},
		{"wave-mobile-money", "Wave Mobile Money"},
		{"x_y", "X Y"},
		{"ACME", "Acme"},
	}

	for _, tt := range tests {
		if got := titleizeIdentifier(tt.in); got != tt.want {
			t.Errorf("titleizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
