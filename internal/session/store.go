// Package session persists the ordered chat-session collection and serves it
// back in recency order. The durable layout mirrors the client it replaces: a
// single keyed record holding the JSON-serialized collection.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/genzai-dev/genzai/internal/chat"
)

// sessionsKey is the single key under which the whole collection is stored.
const sessionsKey = "genzai_sessions"

// Store owns the durable session collection. All mutations are flushed
// synchronously before the operation returns; loads read the full collection
// at once. Malformed persisted data is treated as an empty collection, never
// a fatal error.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	sessions []chat.ChatSession
	index    *Index
}

// NewStore opens (or creates) the backing database, loads the collection and
// builds the search index.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode for concurrent readers, single writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	index, err := NewIndex()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	s := &Store{db: db, index: index}
	s.sessions = s.load(ctx)
	for i := range s.sessions {
		if err := s.index.Add(s.sessions[i]); err != nil {
			log.Warn().Err(err).Str("session", s.sessions[i].ID).Msg("failed to index session")
		}
	}
	return s, nil
}

// Close releases the database and index.
func (s *Store) Close() error {
	if err := s.index.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close search index")
	}
	return s.db.Close()
}

// load reads the persisted collection. Absence or malformed content yields an
// empty collection.
func (s *Store) load(ctx context.Context) []chat.ChatSession {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, sessionsKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("failed to read session collection, starting empty")
		return nil
	}

	var sessions []chat.ChatSession
	if err := json.Unmarshal(value, &sessions); err != nil {
		log.Warn().Err(err).Msg("persisted session collection is malformed, starting empty")
		return nil
	}
	return sessions
}

// flush writes the whole collection under the single key.
func (s *Store) flush(ctx context.Context) error {
	data, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal session collection: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		sessionsKey, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write session collection: %w", err)
	}
	return nil
}

// Upsert creates or updates a session and returns its identifier.
//
// With id == "", a new session is allocated: its title is derived from the
// first message, it is inserted at the front of the collection, and the new
// identifier is returned. With a non-empty id, the matching session's
// messages, timestamp and model are replaced and the collection is re-sorted
// descending by timestamp (stable, so ties keep their relative order). An
// unknown id is a silent no-op.
func (s *Store) Upsert(ctx context.Context, id string, messages []chat.Message, modelID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]chat.Message, len(messages))
	copy(snapshot, messages)

	if id == "" {
		session := chat.ChatSession{
			ID:        uuid.NewString(),
			Title:     chat.DeriveTitle(snapshot),
			Messages:  snapshot,
			Timestamp: time.Now(),
			ModelID:   modelID,
		}
		s.sessions = append([]chat.ChatSession{session}, s.sessions...)
		if err := s.flush(ctx); err != nil {
			// Keep memory and storage in agreement: an unpersisted
			// session must not linger in the collection or the index.
			s.sessions = s.sessions[1:]
			return "", err
		}
		if err := s.index.Add(session); err != nil {
			log.Warn().Err(err).Str("session", session.ID).Msg("failed to index session")
		}
		return session.ID, nil
	}

	found := false
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions[i].Messages = snapshot
			s.sessions[i].Timestamp = time.Now()
			s.sessions[i].ModelID = modelID
			found = true
			if err := s.index.Add(s.sessions[i]); err != nil {
				log.Warn().Err(err).Str("session", id).Msg("failed to reindex session")
			}
			break
		}
	}
	if !found {
		// Stale identifier: treated as a no-op upsert.
		log.Debug().Str("session", id).Msg("upsert for unknown session id ignored")
		return id, nil
	}

	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].Timestamp.After(s.sessions[j].Timestamp)
	})
	if err := s.flush(ctx); err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (chat.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return copySession(s.sessions[i]), true
		}
	}
	return chat.ChatSession{}, false
}

// List returns all sessions sorted descending by timestamp.
func (s *Store) List() []chat.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chat.ChatSession, len(s.sessions))
	for i := range s.sessions {
		out[i] = copySession(s.sessions[i])
	}
	return out
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ClearAll empties the collection and removes the persisted record entirely.
// Idempotent.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, sessionsKey); err != nil {
		return fmt.Errorf("failed to delete session collection: %w", err)
	}
	if err := s.index.Reset(); err != nil {
		log.Warn().Err(err).Msg("failed to reset search index")
	}
	return nil
}

// Search finds sessions whose title or message text matches the query,
// ordered by relevance.
func (s *Store) Search(query string, limit int) ([]chat.ChatSession, error) {
	ids, err := s.index.Search(query, limit)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]chat.ChatSession, len(s.sessions))
	for i := range s.sessions {
		byID[s.sessions[i].ID] = s.sessions[i]
	}

	var out []chat.ChatSession
	for _, id := range ids {
		if sess, ok := byID[id]; ok {
			out = append(out, copySession(sess))
		}
	}
	return out, nil
}

func copySession(s chat.ChatSession) chat.ChatSession {
	out := s
	out.Messages = make([]chat.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}
