package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// DiscoverySource produces company candidates from one upstream feed
type DiscoverySource interface {
	// Name returns the source identifier, e.g. seed_file or github_orgs
	Name() string

	// Description says where the source's candidates come from
	Description() string

	// Enabled reports whether the source has the configuration it needs
	// to run, e.g. a token or a readable seed file
	Enabled() bool

	// Produce returns up to limit candidate companies; limit <= 0 means
	// no cap
	Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error)
}

// DiscoveryService runs sources, dedupes candidates into the queue, and
// vets queued candidates into companies
type DiscoveryService interface {
	// RunSources executes the named sources (all configured sources when
	// empty) and enqueues their candidates. Returns the number enqueued.
	RunSources(ctx context.Context, names []string) (int, error)

	// Enqueue adds candidates directly, used by the admin API
	Enqueue(ctx context.Context, candidates []models.CompanyCandidate) (int, error)

	// ProcessQueue vets pending items: dedupe against companies, ATS
	// detection, then company creation. Returns counts of created and
	// failed items.
	ProcessQueue(ctx context.Context, limit int) (created, failed int, err error)

	// ListQueue returns queue items filtered by status
	ListQueue(ctx context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error)

	// Approve moves a review item into the company catalog with the
	// operator-supplied ATS assignment
	Approve(ctx context.Context, itemID string, atsType models.ATSType, identifier string) (*models.Company, error)

	// Reject marks a review item skipped
	Reject(ctx context.Context, itemID, reason string) error

	// Stats returns queue counts by status
	Stats(ctx context.Context) (*models.DiscoveryStats, error)
}
