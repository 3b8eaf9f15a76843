package badger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/common"
	"github.com/timshannon/badgerhold/v4"
)

// valueLogGCInterval is how often reclaimable value-log space is collected.
// Snapshot bodies are the dominant values, so GC matters most after the
// retention pass deletes old snapshots.
const valueLogGCInterval = 10 * time.Minute

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
	config *common.BadgerConfig

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewBadgerDB opens the Badger store for the catalog and starts the
// value-log GC loop.
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Quiet badger's own logger; arbor logs around it

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", config.Path, err)
	}

	b := &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	go b.runValueLogGC()

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")
	return b, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Size returns the on-disk LSM and value-log sizes in bytes.
func (b *BadgerDB) Size() (lsm, vlog int64) {
	return b.store.Badger().Size()
}

// runValueLogGC periodically reclaims value-log space. Each tick keeps
// collecting until badger reports nothing left to rewrite.
func (b *BadgerDB) runValueLogGC() {
	defer close(b.gcDone)

	ticker := time.NewTicker(valueLogGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.gcStop:
			return
		case <-ticker.C:
			for {
				err := b.store.Badger().RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badgerdb.ErrNoRewrite) {
					b.logger.Warn().Err(err).Msg("Badger value log GC failed")
				}
				break
			}
		}
	}
}

// Close stops the GC loop and closes the database connection
func (b *BadgerDB) Close() error {
	if b.gcStop != nil {
		close(b.gcStop)
		<-b.gcDone
	}
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
