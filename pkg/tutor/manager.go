package tutor

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"ai-lessoncraft-be/pkg/store"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// helpThreshold is the interaction count at which a learner is considered
// stuck on a unit.
const helpThreshold = 3

// maxPreviousContext caps how many prior explanations feed continuity
// phrasing.
const maxPreviousContext = 3

// SessionUpdate carries the partial fields of an update. Nil fields are left
// untouched; topic and question values are appended, not replaced.
type SessionUpdate struct {
	CurrentUnitIndex *int
	CoveredTopic     *string
	AskedQuestion    *string
	LastExplanation  *string
}

// Explanation is the teaching-script output saved against a unit.
type Explanation struct {
	Script       string
	KeyPoints    []string
	Examples     []string
	StudentLevel string
}

// Manager tracks per-learner-per-content teaching sessions and a short memory
// of prior explanations. All operations are synchronous and tolerate a
// missing session id by no-op.
//
// The stored objects are only ever touched under mu; every public read
// returns a deep copy, so the worker updating a session never races a learner
// polling it.
type Manager struct {
	sessions *gocache.Cache
	memory   *gocache.Cache
	mu       sync.RWMutex
}

// NewManager creates a manager whose sessions and memory entries expire after
// maxAge unless the periodic sweep removes them first.
func NewManager(maxAge, cleanupInterval time.Duration) *Manager {
	return &Manager{
		sessions: gocache.New(maxAge, cleanupInterval),
		memory:   gocache.New(maxAge, cleanupInterval),
	}
}

func memoryKey(contentId, unitId uuid.UUID) string {
	return fmt.Sprintf("%s:%s", contentId, unitId)
}

// getSession returns the stored pointer. Callers must hold mu.
func (m *Manager) getSession(sessionId string) (*store.TeachingSession, bool) {
	if x, found := m.sessions.Get(sessionId); found {
		return x.(*store.TeachingSession), true
	}
	return nil, false
}

// getMemory returns the stored pointer. Callers must hold mu.
func (m *Manager) getMemory(contentId, unitId uuid.UUID) (*store.MemoryEntry, bool) {
	if x, found := m.memory.Get(memoryKey(contentId, unitId)); found {
		return x.(*store.MemoryEntry), true
	}
	return nil, false
}

// StartSession creates a fresh session for one sitting. The start timestamp
// is part of the identity, so re-entering a lesson supersedes the previous
// session instead of resuming it.
func (m *Manager) StartSession(requesterId, contentId uuid.UUID, totalUnits int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	session := &store.TeachingSession{
		Id:             fmt.Sprintf("%s:%s:%d", requesterId, contentId, now.UnixNano()),
		RequesterId:    requesterId,
		ContentId:      contentId,
		TotalUnits:     totalUnits,
		CoveredTopics:  make([]string, 0),
		AskedQuestions: make([]string, 0),
		StartTime:      now,
	}
	m.sessions.Set(session.Id, session, gocache.DefaultExpiration)
	return session.Id
}

// GetSession returns a copy of the session or not-found.
func (m *Manager) GetSession(sessionId string) (*store.TeachingSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, found := m.getSession(sessionId)
	if !found {
		return nil, false
	}
	return session.Clone(), true
}

// UpdateSession applies the partial update. The unit index is clamped so it
// never exceeds TotalUnits.
func (m *Manager) UpdateSession(sessionId string, upd SessionUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, found := m.getSession(sessionId)
	if !found {
		return
	}

	if upd.CurrentUnitIndex != nil {
		idx := *upd.CurrentUnitIndex
		if idx > session.TotalUnits {
			idx = session.TotalUnits
		}
		session.CurrentUnitIndex = idx
	}
	if upd.CoveredTopic != nil {
		session.CoveredTopics = append(session.CoveredTopics, *upd.CoveredTopic)
	}
	if upd.AskedQuestion != nil {
		session.AskedQuestions = append(session.AskedQuestions, *upd.AskedQuestion)
	}
	if upd.LastExplanation != nil {
		session.LastExplanation = *upd.LastExplanation
	}

	m.sessions.Set(sessionId, session, gocache.DefaultExpiration)
}

// SaveExplanation overwrites the memory entry for the session's content and
// the given unit. Overwriting starts a new entry lifetime, so the interaction
// counter resets. The session's covered topics and last explanation are
// updated alongside.
func (m *Manager) SaveExplanation(sessionId string, unitId uuid.UUID, exp Explanation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, found := m.getSession(sessionId)
	if !found {
		return
	}

	entry := &store.MemoryEntry{
		ContentId:    session.ContentId,
		UnitId:       unitId,
		Script:       exp.Script,
		KeyPoints:    append([]string(nil), exp.KeyPoints...),
		Examples:     append([]string(nil), exp.Examples...),
		StudentLevel: exp.StudentLevel,
		Timestamp:    time.Now(),
	}
	m.memory.Set(memoryKey(session.ContentId, unitId), entry, gocache.DefaultExpiration)

	session.CoveredTopics = append(session.CoveredTopics, exp.KeyPoints...)
	session.LastExplanation = exp.Script
	m.sessions.Set(sessionId, session, gocache.DefaultExpiration)
}

// GetLastExplanation returns a copy of the current memory entry for a unit,
// if any.
func (m *Manager) GetLastExplanation(contentId, unitId uuid.UUID) (*store.MemoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, found := m.getMemory(contentId, unitId)
	if !found {
		return nil, false
	}
	return entry.Clone(), true
}

// GetPreviousContext returns up to 3 most-recent memory entries for the
// session's content, newest first. Entries are copies.
func (m *Manager) GetPreviousContext(sessionId string) []*store.MemoryEntry {
	m.mu.RLock()

	session, found := m.getSession(sessionId)
	if !found {
		m.mu.RUnlock()
		return nil
	}

	var entries []*store.MemoryEntry
	for _, item := range m.memory.Items() {
		entry := item.Object.(*store.MemoryEntry)
		if entry.ContentId == session.ContentId {
			entries = append(entries, entry.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if len(entries) > maxPreviousContext {
		entries = entries[:maxPreviousContext]
	}
	return entries
}

// RecordInteraction bumps the interaction counter for a unit. A minimal
// memory entry is created when none exists yet, so the needs-help signal can
// fire even for a unit that was never successfully explained. Questions are
// also appended to the session.
func (m *Manager) RecordInteraction(sessionId string, unitId uuid.UUID, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, found := m.getSession(sessionId)
	if !found {
		return
	}

	entry, ok := m.getMemory(session.ContentId, unitId)
	if !ok {
		entry = &store.MemoryEntry{
			ContentId: session.ContentId,
			UnitId:    unitId,
			Timestamp: time.Now(),
		}
	}
	entry.InteractionCount++
	m.memory.Set(memoryKey(session.ContentId, unitId), entry, gocache.DefaultExpiration)

	if kind == store.InteractionQuestion {
		session.AskedQuestions = append(session.AskedQuestions, unitId.String())
		m.sessions.Set(sessionId, session, gocache.DefaultExpiration)
	}
}

// NeedsHelp reports whether the learner looks stuck on a unit.
func (m *Manager) NeedsHelp(sessionId string, unitId uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, found := m.getSession(sessionId)
	if !found {
		return false
	}
	entry, found := m.getMemory(session.ContentId, unitId)
	if !found {
		return false
	}
	return entry.InteractionCount >= helpThreshold
}

var continuityTemplates = []string{
	"Remember when we talked about %s? Let's build on that.",
	"Earlier we covered %s, and this next part connects directly to it.",
	"Just like with %s, the same idea shows up again here.",
	"Think back to %s for a moment, because we're about to extend it.",
}

// BuildContinuityPhrase returns a templated sentence referencing the most
// recent covered key point, or the empty string when there is no prior
// context to build on.
func (m *Manager) BuildContinuityPhrase(sessionId string) string {
	previous := m.GetPreviousContext(sessionId)
	if len(previous) == 0 {
		return ""
	}

	latest := previous[0]
	if len(latest.KeyPoints) == 0 {
		return ""
	}
	point := latest.KeyPoints[len(latest.KeyPoints)-1]

	template := continuityTemplates[rand.Intn(len(continuityTemplates))]
	return fmt.Sprintf(template, point)
}

// CleanupOldMemory sweeps sessions and memory entries older than the given
// age and returns how many were removed.
func (m *Manager) CleanupOldMemory(maxAgeMinutes int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	removed := 0

	for key, item := range m.sessions.Items() {
		session := item.Object.(*store.TeachingSession)
		if session.StartTime.Before(cutoff) {
			m.sessions.Delete(key)
			removed++
		}
	}
	for key, item := range m.memory.Items() {
		entry := item.Object.(*store.MemoryEntry)
		if entry.Timestamp.Before(cutoff) {
			m.memory.Delete(key)
			removed++
		}
	}

	return removed
}

// Flush drops all sessions and memory. Exposed as the explicit teardown
// entry point.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions.Flush()
	m.memory.Flush()
}
