// Package state persists the listening session to a small SQLite
// database so a restart puts the user back where they left off. Saves
// are debounced; the pending snapshot is flushed on Close.
package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/llehouerou/segue/internal/playback"
)

const (
	appName      = "segue"
	dbFileName   = "segue.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *playback.Snapshot
}

// Open opens the session database at its XDG data path.
func Open() (*Manager, error) {
	dbPath, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return nil, err
	}
	return OpenAt(dbPath)
}

// OpenAt opens the session database at an explicit path.
func OpenAt(dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db}, nil
}

// Close flushes any pending save and closes the database.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		_ = saveSession(m.db, *pending)
	}

	return m.db.Close()
}

// GetSession loads the saved session. A fresh database yields an empty
// snapshot with Index -1.
func (m *Manager) GetSession() (*playback.Snapshot, error) {
	return getSession(m.db)
}

// SaveSession schedules a debounced write of the snapshot. Rapid
// successive saves collapse to the most recent one.
func (m *Manager) SaveSession(snap playback.Snapshot) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &snap

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			_ = saveSession(m.db, *pending)
		}
	})
}

// DB exposes the underlying handle for components that share the
// database file.
func (m *Manager) DB() *sql.DB {
	return m.db
}
