// Package store is the client's persisted local state: auth token, player
// identity, a timestamped room snapshot and per-question submission flags.
// State lives in a single JSON file written atomically.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/quizrally/client/internal/wire"
)

// RoomTTL is how long a cached room snapshot stays usable.
const RoomTTL = 2 * time.Hour

type cachedRoom struct {
	SavedAt time.Time  `json:"savedAt"`
	Room    *wire.Room `json:"room"`
}

type fileData struct {
	Token       string          `json:"token,omitempty"`
	PlayerID    string          `json:"playerId,omitempty"`
	UserID      string          `json:"userId,omitempty"`
	PlayerName  string          `json:"playerName,omitempty"`
	Username    string          `json:"username,omitempty"`
	Room        *cachedRoom     `json:"room,omitempty"`
	Submissions map[string]bool `json:"submissions,omitempty"`
}

// Store is a file-backed key-value store. All methods are safe for concurrent
// use; write failures are logged, not surfaced, matching the fire-and-forget
// semantics of browser local storage this replaces.
type Store struct {
	path  string
	clock clockwork.Clock

	mu   sync.Mutex
	data fileData
}

// Open loads the store at path, creating parent directories as needed. A
// missing file yields an empty store; a corrupt file is discarded with a
// warning.
func Open(path string, clock clockwork.Clock) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	s := &Store{path: path, clock: clock}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run.
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("corrupt state file, starting fresh")
			s.data = fileData{}
		}
	}
	if s.data.Submissions == nil {
		s.data.Submissions = make(map[string]bool)
	}
	return s, nil
}

// persistLocked writes the state file atomically. Caller holds s.mu.
func (s *Store) persistLocked() {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("marshal state")
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("write state file")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("replace state file")
	}
}

// SetAuth records the authenticated identity.
func (s *Store) SetAuth(auth wire.AuthResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Token = auth.Token
	s.data.PlayerID = auth.PlayerID
	s.data.UserID = auth.UserID
	s.data.PlayerName = auth.Name
	s.data.Username = auth.Username
	s.persistLocked()
}

// ClearAuth drops the identity, the room cache and all submission flags.
func (s *Store) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = fileData{Submissions: make(map[string]bool)}
	s.persistLocked()
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Token
}

func (s *Store) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PlayerID
}

func (s *Store) PlayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PlayerName
}

// SaveRoom caches the room snapshot with the current timestamp.
func (s *Store) SaveRoom(r *wire.Room) {
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Room = &cachedRoom{SavedAt: s.clock.Now(), Room: r}
	s.persistLocked()
}

// LoadRoom returns the cached snapshot, or nil when absent or older than
// RoomTTL. An expired snapshot is cleared on the way out.
func (s *Store) LoadRoom() *wire.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Room == nil {
		return nil
	}
	if s.clock.Since(s.data.Room.SavedAt) > RoomTTL {
		log.Info().Msg("cached room expired, clearing")
		s.data.Room = nil
		s.persistLocked()
		return nil
	}
	return s.data.Room.Room
}

// ClearRoom drops the cached snapshot.
func (s *Store) ClearRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Room == nil {
		return
	}
	s.data.Room = nil
	s.persistLocked()
}

// HasSubmitted reports the persisted flag for a submission key.
func (s *Store) HasSubmitted(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Submissions[key]
}

// MarkSubmitted persists the flag for a submission key.
func (s *Store) MarkSubmitted(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Submissions[key] = true
	s.persistLocked()
}

// ClearSubmitted removes the persisted flag for a submission key.
func (s *Store) ClearSubmitted(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Submissions[key]; !ok {
		return
	}
	delete(s.data.Submissions, key)
	s.persistLocked()
}
