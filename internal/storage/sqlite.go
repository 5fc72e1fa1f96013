package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/keshon/jukebox/internal/music/media"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		played_at INTEGER NOT NULL,
		info TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS history_user ON history (user_id, id)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		info TEXT NOT NULL,
		FOREIGN KEY (user_id, name) REFERENCES playlists (user_id, name) ON DELETE CASCADE
	)`,
}

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

func openSQLite(path string, log zerolog.Logger) (*sqliteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)

	s := &sqliteStore{db: db, log: log, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Int("tables", len(schema)).Msg("schema ready")
	return s, nil
}

func (s *sqliteStore) migrate() error {
	return s.tx(func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}
		return nil
	})
}

func (s *sqliteStore) tx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) AddHistory(userID string, info media.MediaInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return s.tx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO history (user_id, played_at, info) VALUES (?, ?, ?)`,
			userID, s.now().UnixMilli(), string(raw),
		); err != nil {
			return err
		}
		_, err := tx.Exec(`
			DELETE FROM history
			WHERE user_id = ? AND id NOT IN (
				SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
			)`, userID, userID, HistoryLimit)
		return err
	})
}

func (s *sqliteStore) History(userID string, limit, offset int) ([]HistoryEntry, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	start, end := page(total, limit, offset)
	if start == end {
		return []HistoryEntry{}, total, nil
	}

	rows, err := s.db.Query(
		`SELECT played_at, info FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		userID, end-start, start,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			playedAt int64
			raw      string
			entry    HistoryEntry
		)
		if err := rows.Scan(&playedAt, &raw); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(raw), &entry.Info); err != nil {
			return nil, 0, fmt.Errorf("decode history entry: %w", err)
		}
		entry.PlayedAt = time.UnixMilli(playedAt)
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (s *sqliteStore) CreatePlaylist(userID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO playlists (user_id, name, created_at) VALUES (?, ?, ?)`,
		userID, name, s.now().UnixMilli(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return ErrPlaylistExists
	}
	return err
}

func (s *sqliteStore) DeletePlaylist(userID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	return s.tx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE user_id = ? AND name = ?`, userID, name); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM playlists WHERE user_id = ? AND name = ?`, userID, name)
		if err != nil {
			return err
		}
		return requireAffected(res, ErrPlaylistNotFound)
	})
}

func (s *sqliteStore) Playlists(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM playlists WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) Playlist(userID, name string) ([]media.MediaInfo, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := s.playlistExists(s.db, userID, name); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT info FROM playlist_tracks WHERE user_id = ? AND name = ? ORDER BY id`,
		userID, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := []media.MediaInfo{}
	for rows.Next() {
		var (
			raw  string
			info media.MediaInfo
		)
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			return nil, fmt.Errorf("decode playlist track: %w", err)
		}
		tracks = append(tracks, info)
	}
	return tracks, rows.Err()
}

func (s *sqliteStore) AddToPlaylist(userID, name string, info media.MediaInfo) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return s.tx(func(tx *sql.Tx) error {
		if err := s.playlistExists(tx, userID, name); err != nil {
			return err
		}
		_, err := tx.Exec(
			`INSERT INTO playlist_tracks (user_id, name, url, info) VALUES (?, ?, ?, ?)`,
			userID, name, info.URL, string(raw),
		)
		return err
	})
}

func (s *sqliteStore) RemoveFromPlaylist(userID, name, url string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}

	return s.tx(func(tx *sql.Tx) error {
		if err := s.playlistExists(tx, userID, name); err != nil {
			return err
		}
		res, err := tx.Exec(`
			DELETE FROM playlist_tracks WHERE id = (
				SELECT id FROM playlist_tracks
				WHERE user_id = ? AND name = ? AND url = ?
				ORDER BY id LIMIT 1
			)`, userID, name, url)
		if err != nil {
			return err
		}
		return requireAffected(res, ErrTrackNotFound)
	})
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *sqliteStore) playlistExists(q queryRower, userID, name string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM playlists WHERE user_id = ? AND name = ?`, userID, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlaylistNotFound
	}
	return err
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
