package store

import (
	"time"

	"github.com/google/uuid"
)

// Interaction kinds recorded against a unit within a session.
const (
	InteractionQuestion = "QUESTION"
	InteractionRepeat   = "REPEAT"
	InteractionHint     = "HINT"
)

// TeachingSession is the ephemeral per-learner-per-content state for one
// sitting. Identity is requester + content + session start timestamp, so
// re-entering a lesson supersedes the old session rather than resuming it.
type TeachingSession struct {
	Id               string    `json:"id"`
	RequesterId      uuid.UUID `json:"requester_id"`
	ContentId        uuid.UUID `json:"content_id"`
	CurrentUnitIndex int       `json:"current_unit_index"`
	TotalUnits       int       `json:"total_units"`
	CoveredTopics    []string  `json:"covered_topics"`
	AskedQuestions   []string  `json:"asked_questions"`
	LastExplanation  string    `json:"last_explanation"`
	StartTime        time.Time `json:"start_time"`
}

// Clone returns a deep copy so callers never share slices with the stored
// session.
func (s *TeachingSession) Clone() *TeachingSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CoveredTopics = append([]string(nil), s.CoveredTopics...)
	cp.AskedQuestions = append([]string(nil), s.AskedQuestions...)
	return &cp
}

// MemoryEntry is the most recent explanation recorded for one unit of a
// content item. Overwritten, never appended, on re-explanation. The
// interaction counter only ever goes up within an entry's lifetime.
type MemoryEntry struct {
	ContentId        uuid.UUID `json:"content_id"`
	UnitId           uuid.UUID `json:"unit_id"`
	Script           string    `json:"script"`
	KeyPoints        []string  `json:"key_points"`
	Examples         []string  `json:"examples,omitempty"`
	StudentLevel     string    `json:"student_level"`
	InteractionCount int       `json:"interaction_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// Clone returns a deep copy so callers never share slices with the stored
// entry.
func (e *MemoryEntry) Clone() *MemoryEntry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.KeyPoints = append([]string(nil), e.KeyPoints...)
	cp.Examples = append([]string(nil), e.Examples...)
	return &cp
}
