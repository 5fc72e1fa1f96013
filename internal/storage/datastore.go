package storage

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/keshon/jukebox/datastore"
	"github.com/keshon/jukebox/internal/music/media"
)

// userRecord is the JSON document kept per user.
type userRecord struct {
	History   []HistoryEntry               `json:"history"`
	Playlists map[string][]media.MediaInfo `json:"playlists"`
}

type datastoreStore struct {
	mu  sync.Mutex
	ds  *datastore.DataStore
	log zerolog.Logger
	now func() time.Time
}

func openDatastore(path string, log zerolog.Logger) (*datastoreStore, error) {
	cfg := datastore.DefaultConfig(path)
	cfg.Logger = log
	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &datastoreStore{ds: ds, log: log, now: time.Now}, nil
}

func userKey(userID string) string {
	return "user:" + userID
}

// getOrCreateUserRecord must be called with s.mu held.
func (s *datastoreStore) getOrCreateUserRecord(userID string) (*userRecord, error) {
	var rec userRecord
	if _, err := s.ds.Get(userKey(userID), &rec); err != nil {
		return nil, err
	}
	if rec.Playlists == nil {
		rec.Playlists = map[string][]media.MediaInfo{}
	}
	if len(rec.History) > HistoryLimit {
		rec.History = rec.History[:HistoryLimit]
	}
	return &rec, nil
}

// update loads the user record, applies fn and writes it back unless fn
// fails.
func (s *datastoreStore) update(userID string, fn func(*userRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.getOrCreateUserRecord(userID)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return s.ds.Put(userKey(userID), rec)
}

func (s *datastoreStore) view(userID string) (*userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateUserRecord(userID)
}

func (s *datastoreStore) AddHistory(userID string, info media.MediaInfo) error {
	return s.update(userID, func(rec *userRecord) error {
		rec.History = slices.Insert(rec.History, 0, HistoryEntry{Info: info, PlayedAt: s.now()})
		if len(rec.History) > HistoryLimit {
			rec.History = rec.History[:HistoryLimit]
		}
		s.log.Debug().Str("user", userID).Str("url", info.URL).Int("entries", len(rec.History)).Msg("history recorded")
		return nil
	})
}

func (s *datastoreStore) History(userID string, limit, offset int) ([]HistoryEntry, int, error) {
	rec, err := s.view(userID)
	if err != nil {
		return nil, 0, err
	}
	start, end := page(len(rec.History), limit, offset)
	return rec.History[start:end], len(rec.History), nil
}

func (s *datastoreStore) CreatePlaylist(userID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.update(userID, func(rec *userRecord) error {
		if _, ok := rec.Playlists[name]; ok {
			return ErrPlaylistExists
		}
		rec.Playlists[name] = []media.MediaInfo{}
		return nil
	})
}

func (s *datastoreStore) DeletePlaylist(userID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.update(userID, func(rec *userRecord) error {
		if _, ok := rec.Playlists[name]; !ok {
			return ErrPlaylistNotFound
		}
		delete(rec.Playlists, name)
		return nil
	})
}

func (s *datastoreStore) Playlists(userID string) ([]string, error) {
	rec, err := s.view(userID)
	if err != nil {
		return nil, err
	}
	names := lo.Keys(rec.Playlists)
	slices.Sort(names)
	return names, nil
}

func (s *datastoreStore) Playlist(userID, name string) ([]media.MediaInfo, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	rec, err := s.view(userID)
	if err != nil {
		return nil, err
	}
	tracks, ok := rec.Playlists[name]
	if !ok {
		return nil, ErrPlaylistNotFound
	}
	return tracks, nil
}

func (s *datastoreStore) AddToPlaylist(userID, name string, info media.MediaInfo) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.update(userID, func(rec *userRecord) error {
		tracks, ok := rec.Playlists[name]
		if !ok {
			return ErrPlaylistNotFound
		}
		rec.Playlists[name] = append(tracks, info)
		return nil
	})
}

func (s *datastoreStore) RemoveFromPlaylist(userID, name, url string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	return s.update(userID, func(rec *userRecord) error {
		tracks, ok := rec.Playlists[name]
		if !ok {
			return ErrPlaylistNotFound
		}
		i := slices.IndexFunc(tracks, func(m media.MediaInfo) bool { return m.URL == url })
		if i < 0 {
			return ErrTrackNotFound
		}
		rec.Playlists[name] = slices.Delete(tracks, i, i+1)
		return nil
	})
}

func (s *datastoreStore) Close() error {
	return s.ds.Close()
}
