package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/storage/badger"
)

// NewStorageManager creates the storage manager. Badger is the only
// backend; the factory keeps the seam between wiring and engine.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Badger)
}
