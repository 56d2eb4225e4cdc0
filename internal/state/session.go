package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/segue/internal/db"
	"github.com/llehouerou/segue/internal/library"
	"github.com/llehouerou/segue/internal/playback"
	"github.com/llehouerou/segue/internal/queue"
)

func getSession(db *sql.DB) (*playback.Snapshot, error) {
	snap := &playback.Snapshot{Index: -1, Volume: 1.0}

	var repeatMode int
	var positionMs int64
	row := db.QueryRow(`
		SELECT current_index, position_ms, repeat_mode, shuffle, volume, muted
		FROM session_state WHERE id = 1
	`)
	err := row.Scan(&snap.Index, &positionMs, &repeatMode, &snap.Shuffle, &snap.Volume, &snap.Muted)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, nil
	}
	if err != nil {
		return nil, err
	}
	snap.Position = time.Duration(positionMs) * time.Millisecond
	snap.Repeat = queue.RepeatMode(repeatMode)

	rows, err := db.Query(`
		SELECT track_id, locator, title, artist, album, duration_ms, gain_db
		FROM session_tracks
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t library.Track
		var title, artist, album sql.NullString
		var durationMs sql.NullInt64
		var gainDB sql.NullFloat64

		if err := rows.Scan(&t.ID, &t.Locator, &title, &artist, &album, &durationMs, &gainDB); err != nil {
			return nil, err
		}

		t.Title = dbutil.NullStringValue(title)
		t.Artist = dbutil.NullStringValue(artist)
		t.Album = dbutil.NullStringValue(album)
		t.Duration = time.Duration(dbutil.NullInt64Value(durationMs)) * time.Millisecond
		t.GainDB = dbutil.NullFloat64ToPtr(gainDB)
		snap.Tracks = append(snap.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snap, nil
}

func saveSession(sqlDB *sql.DB, snap playback.Snapshot) error {
	return dbutil.WithTx(sqlDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM session_tracks`)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO session_state (id, current_index, position_ms, repeat_mode, shuffle, volume, muted)
			VALUES (1, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				position_ms = excluded.position_ms,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle,
				volume = excluded.volume,
				muted = excluded.muted
		`, snap.Index, snap.Position.Milliseconds(), int(snap.Repeat), snap.Shuffle, snap.Volume, snap.Muted)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO session_tracks (position, track_id, locator, title, artist, album, duration_ms, gain_db)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range snap.Tracks {
			var gain any
			if t.GainDB != nil {
				gain = *t.GainDB
			}
			_, err = stmt.Exec(i, t.ID, t.Locator, t.Title, t.Artist, t.Album, t.Duration.Milliseconds(), gain)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
