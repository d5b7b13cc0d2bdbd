package wiring

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/pillars/internal/infrastructure/config"
	"github.com/felixgeelhaar/pillars/pkg/domain/assessment"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
	"github.com/felixgeelhaar/pillars/pkg/domain/schedule"
	"github.com/felixgeelhaar/pillars/pkg/domain/timeline"
	"github.com/felixgeelhaar/pillars/pkg/storage"
	"github.com/felixgeelhaar/pillars/pkg/storage/sqlstore"
)

// DatabaseFile is the SQLite file inside store.path.
const DatabaseFile = "pillars.db"

// Store is the union of the persistence contracts a backend provides.
type Store interface {
	journey.Repository
	assessment.Repository
	schedule.CalendarStore
	schedule.TaskStore
	ListCalendarEntries(ctx context.Context, journeyID string) ([]schedule.CalendarEntry, error)
}

// Workspace bundles the storage backend selected by configuration.
type Workspace struct {
	Store  Store
	Events timeline.Repository
	// TimelinePath is the file a follower watches. It is the JSON Lines
	// timeline for the filesystem backend and the database for sqlite.
	TimelinePath string

	close func() error
}

// OpenWorkspace opens the backend named by store.backend.
func OpenWorkspace(cfg *config.Config) (*Workspace, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		path := filepath.Join(cfg.Store.Path, DatabaseFile)
		db, err := sqlstore.Open(path)
		if err != nil {
			return nil, err
		}
		return &Workspace{Store: db, Events: db, TimelinePath: path, close: db.Close}, nil
	case config.BackendFilesystem, "":
		repo := storage.NewFilesystemRepositoryIn(cfg.Store.Path)
		events, err := storage.NewFileEventStore(repo.Dir())
		if err != nil {
			return nil, fmt.Errorf("open timeline: %w", err)
		}
		return &Workspace{Store: repo, Events: events, TimelinePath: events.Path()}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Close releases the backend.
func (w *Workspace) Close() error {
	if w == nil || w.close == nil {
		return nil
	}
	return w.close()
}
