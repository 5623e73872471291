package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartSessionRequest struct {
	ContentId  uuid.UUID `json:"content_id" validate:"required"`
	TotalUnits int       `json:"total_units" validate:"required,gte=1"`
}

type StartSessionResponse struct {
	SessionId string `json:"session_id"`
}

type UpdateSessionRequest struct {
	CurrentUnitIndex *int    `json:"current_unit_index" validate:"omitempty,gte=0"`
	CoveredTopic     *string `json:"covered_topic"`
	AskedQuestion    *string `json:"asked_question"`
	LastExplanation  *string `json:"last_explanation"`
}

type SessionResponse struct {
	SessionId        string    `json:"session_id"`
	ContentId        uuid.UUID `json:"content_id"`
	CurrentUnitIndex int       `json:"current_unit_index"`
	TotalUnits       int       `json:"total_units"`
	CoveredTopics    []string  `json:"covered_topics"`
	AskedQuestions   []string  `json:"asked_questions"`
	LastExplanation  string    `json:"last_explanation"`
	StartTime        time.Time `json:"start_time"`
}

type SaveExplanationRequest struct {
	UnitId       uuid.UUID `json:"unit_id" validate:"required"`
	Script       string    `json:"script" validate:"required"`
	KeyPoints    []string  `json:"key_points"`
	Examples     []string  `json:"examples"`
	StudentLevel string    `json:"student_level"`
}

type MemoryEntryResponse struct {
	ContentId        uuid.UUID `json:"content_id"`
	UnitId           uuid.UUID `json:"unit_id"`
	Script           string    `json:"script"`
	KeyPoints        []string  `json:"key_points"`
	Examples         []string  `json:"examples,omitempty"`
	StudentLevel     string    `json:"student_level"`
	InteractionCount int       `json:"interaction_count"`
	Timestamp        time.Time `json:"timestamp"`
}

type RecordInteractionRequest struct {
	UnitId uuid.UUID `json:"unit_id" validate:"required"`
	Kind   string    `json:"kind" validate:"required,oneof=QUESTION REPEAT HINT"`
}

type NeedsHelpResponse struct {
	NeedsHelp bool `json:"needs_help"`
}

type ContinuityResponse struct {
	Phrase string `json:"phrase"`
}

type CleanupRequest struct {
	MaxAgeMinutes int `json:"max_age_minutes" validate:"required,gte=1"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}
