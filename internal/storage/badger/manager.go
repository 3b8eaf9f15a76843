package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	companies  interfaces.CompanyStorage
	snapshots  interfaces.SnapshotStorage
	rawJobs    interfaces.RawJobStorage
	jobs       interfaces.JobStorage
	candidates interfaces.CandidateStorage
	matches    interfaces.MatchStorage
	runs       interfaces.RunStorage
	discovery  interfaces.DiscoveryStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		companies:  NewCompanyStorage(db, logger),
		snapshots:  NewSnapshotStorage(db, logger),
		rawJobs:    NewRawJobStorage(db, logger),
		jobs:       NewJobStorage(db, logger),
		candidates: NewCandidateStorage(db, logger),
		matches:    NewMatchStorage(db, logger),
		runs:       NewRunStorage(db, logger),
		discovery:  NewDiscoveryStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// Companies returns the company storage interface
func (m *Manager) Companies() interfaces.CompanyStorage {
	return m.companies
}

// Snapshots returns the crawl snapshot storage interface
func (m *Manager) Snapshots() interfaces.SnapshotStorage {
	return m.snapshots
}

// RawJobs returns the raw job storage interface
func (m *Manager) RawJobs() interfaces.RawJobStorage {
	return m.rawJobs
}

// Jobs returns the canonical job storage interface
func (m *Manager) Jobs() interfaces.JobStorage {
	return m.jobs
}

// Candidates returns the candidate storage interface
func (m *Manager) Candidates() interfaces.CandidateStorage {
	return m.candidates
}

// Matches returns the match storage interface
func (m *Manager) Matches() interfaces.MatchStorage {
	return m.matches
}

// Runs returns the pipeline run storage interface
func (m *Manager) Runs() interfaces.RunStorage {
	return m.runs
}

// Discovery returns the discovery queue storage interface
func (m *Manager) Discovery() interfaces.DiscoveryStorage {
	return m.discovery
}

// KV returns the key/value storage interface
func (m *Manager) KV() interfaces.KeyValueStorage {
	return m.kv
}

// DiskUsage returns the on-disk LSM tree and value log sizes in bytes
func (m *Manager) DiskUsage() (lsm, vlog int64) {
	if m.db == nil {
		return 0, 0
	}
	return m.db.Size()
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
