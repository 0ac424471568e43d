// Package store provides the in-memory session state shared by the HTTP
// layer and the turn workers.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/codial-dev/codial-core/pkg/domain"
	"github.com/codial-dev/codial-core/pkg/models"
)

const sessionNotFoundMessage = "세션을 찾을 수 없어요."

// InMemorySessionStore keeps every session for the process lifetime.
// Records live in the map as values; mutators copy the stored record,
// apply the change and swap the copy back in under the lock, so a record
// handed out earlier never changes underneath its holder. Ended sessions
// are kept so late events can still resolve them.
type InMemorySessionStore struct {
	mu            sync.Mutex
	sessions      map[string]models.SessionRecord
	byIdempotency map[string]string
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:      make(map[string]models.SessionRecord),
		byIdempotency: make(map[string]string),
	}
}

// CreateSession mints a new active session, or returns the existing record
// when the idempotency key is already known. The supplied defaults are
// ignored for a replayed key.
func (s *InMemorySessionStore) CreateSession(guildID, requesterID, idempotencyKey string, defaults models.SessionDefaults) models.SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byIdempotency[idempotencyKey]; ok {
		return s.sessions[existingID]
	}

	record := models.SessionRecord{
		SessionID:      uuid.NewString(),
		GuildID:        guildID,
		RequesterID:    requesterID,
		Status:         models.SessionStatusActive,
		Provider:       defaults.Provider,
		Model:          defaults.Model,
		McpEnabled:     defaults.McpEnabled,
		McpProfileName: defaults.McpProfileName,
	}
	s.sessions[record.SessionID] = record
	s.byIdempotency[idempotencyKey] = record.SessionID
	return record
}

// GetSession returns a snapshot of the session.
func (s *InMemorySessionStore) GetSession(sessionID string) (models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return models.SessionRecord{}, domain.NewNotFound(sessionNotFoundMessage)
	}
	return record, nil
}

func (s *InMemorySessionStore) BindChannel(sessionID, channelID string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.ChannelID = &channelID
	})
}

func (s *InMemorySessionStore) EndSession(sessionID string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.Status = models.SessionStatusEnded
	})
}

func (s *InMemorySessionStore) SetProvider(sessionID, provider string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.Provider = provider
	})
}

func (s *InMemorySessionStore) SetModel(sessionID, model string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.Model = model
	})
}

func (s *InMemorySessionStore) SetMcp(sessionID string, enabled bool, profileName *string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.McpEnabled = enabled
		record.McpProfileName = profileName
	})
}

// SetSubagent assigns the session's subagent. A nil name clears it.
func (s *InMemorySessionStore) SetSubagent(sessionID string, subagentName *string) (models.SessionRecord, error) {
	return s.update(sessionID, func(record *models.SessionRecord) {
		record.SubagentName = subagentName
	})
}

// update applies a mutation to a copy of the stored record and swaps the
// copy in, all under the store lock.
func (s *InMemorySessionStore) update(sessionID string, apply func(*models.SessionRecord)) (models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return models.SessionRecord{}, domain.NewNotFound(sessionNotFoundMessage)
	}
	apply(&record)
	s.sessions[sessionID] = record
	return record, nil
}
