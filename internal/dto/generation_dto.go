package dto

import (
	"time"

	"github.com/google/uuid"
)

type SubmitJobUnit struct {
	Id    uuid.UUID `json:"id" validate:"required"`
	Index int       `json:"index" validate:"gte=0"`
	Title string    `json:"title" validate:"required"`
	Body  string    `json:"body" validate:"required"`
	Notes string    `json:"notes"`
}

type SubmitJobRequest struct {
	ContentId    uuid.UUID       `json:"content_id" validate:"required"`
	Units        []SubmitJobUnit `json:"units" validate:"required,min=1,dive"`
	Narrate      bool            `json:"narrate"`
	Teach        bool            `json:"teach"`
	Theme        string          `json:"theme"`
	LearnerGrade string          `json:"learner_grade"`
	LearnerName  string          `json:"learner_name"`
}

type SubmitJobResponse struct {
	JobId string `json:"job_id"`
}

type JobStatusResponse struct {
	JobId       string `json:"job_id"`
	State       string `json:"state"`
	Percent     int    `json:"percent"`
	CurrentUnit int    `json:"current_unit"`
	TotalUnits  int    `json:"total_units"`
	FailReason  string `json:"fail_reason,omitempty"`
}

type JobResultUnit struct {
	UnitId         uuid.UUID `json:"unit_id"`
	Index          int       `json:"index"`
	Html           string    `json:"html"`
	AudioRef       string    `json:"audio_ref,omitempty"`
	TeachingScript string    `json:"teaching_script,omitempty"`
	KeyPoints      []string  `json:"key_points,omitempty"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}

type JobResultResponse struct {
	ContentId   uuid.UUID       `json:"content_id"`
	Theme       string          `json:"theme"`
	GeneratedAt time.Time       `json:"generated_at"`
	Units       []JobResultUnit `json:"units"`
}
