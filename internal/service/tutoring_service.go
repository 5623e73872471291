package service

import (
	"context"
	"errors"

	"ai-lessoncraft-be/internal/dto"
	"ai-lessoncraft-be/pkg/tutor"

	"github.com/google/uuid"
)

// ErrSessionNotFound covers both unknown sessions and sessions owned by a
// different learner; callers cannot distinguish the two.
var ErrSessionNotFound = errors.New("session not found or access denied")

// ErrMemoryNotFound is returned when no explanation was recorded for a unit.
var ErrMemoryNotFound = errors.New("no explanation recorded for this unit")

type ITutoringService interface {
	StartSession(ctx context.Context, requesterId uuid.UUID, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	UpdateSession(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.UpdateSessionRequest) error
	GetSession(ctx context.Context, requesterId uuid.UUID, sessionId string) (*dto.SessionResponse, error)
	SaveExplanation(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.SaveExplanationRequest) error
	GetLastExplanation(ctx context.Context, contentId, unitId uuid.UUID) (*dto.MemoryEntryResponse, error)
	GetPreviousContext(ctx context.Context, requesterId uuid.UUID, sessionId string) ([]*dto.MemoryEntryResponse, error)
	RecordInteraction(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.RecordInteractionRequest) error
	NeedsHelp(ctx context.Context, requesterId uuid.UUID, sessionId string, unitId uuid.UUID) (*dto.NeedsHelpResponse, error)
	BuildContinuityPhrase(ctx context.Context, requesterId uuid.UUID, sessionId string) (*dto.ContinuityResponse, error)
	CleanupOldMemory(ctx context.Context, req *dto.CleanupRequest) (*dto.CleanupResponse, error)
}

type tutoringService struct {
	manager *tutor.Manager
}

func NewTutoringService(manager *tutor.Manager) ITutoringService {
	return &tutoringService{manager: manager}
}

// verifySession validates session existence and ownership.
func (s *tutoringService) verifySession(requesterId uuid.UUID, sessionId string) error {
	session, found := s.manager.GetSession(sessionId)
	if !found || session.RequesterId != requesterId {
		return ErrSessionNotFound
	}
	return nil
}

func (s *tutoringService) StartSession(ctx context.Context, requesterId uuid.UUID, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	sessionId := s.manager.StartSession(requesterId, req.ContentId, req.TotalUnits)
	return &dto.StartSessionResponse{SessionId: sessionId}, nil
}

func (s *tutoringService) UpdateSession(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.UpdateSessionRequest) error {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return err
	}
	s.manager.UpdateSession(sessionId, tutor.SessionUpdate{
		CurrentUnitIndex: req.CurrentUnitIndex,
		CoveredTopic:     req.CoveredTopic,
		AskedQuestion:    req.AskedQuestion,
		LastExplanation:  req.LastExplanation,
	})
	return nil
}

func (s *tutoringService) GetSession(ctx context.Context, requesterId uuid.UUID, sessionId string) (*dto.SessionResponse, error) {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return nil, err
	}
	session, _ := s.manager.GetSession(sessionId)

	return &dto.SessionResponse{
		SessionId:        session.Id,
		ContentId:        session.ContentId,
		CurrentUnitIndex: session.CurrentUnitIndex,
		TotalUnits:       session.TotalUnits,
		CoveredTopics:    session.CoveredTopics,
		AskedQuestions:   session.AskedQuestions,
		LastExplanation:  session.LastExplanation,
		StartTime:        session.StartTime,
	}, nil
}

func (s *tutoringService) SaveExplanation(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.SaveExplanationRequest) error {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return err
	}
	s.manager.SaveExplanation(sessionId, req.UnitId, tutor.Explanation{
		Script:       req.Script,
		KeyPoints:    req.KeyPoints,
		Examples:     req.Examples,
		StudentLevel: req.StudentLevel,
	})
	return nil
}

func (s *tutoringService) GetLastExplanation(ctx context.Context, contentId, unitId uuid.UUID) (*dto.MemoryEntryResponse, error) {
	entry, found := s.manager.GetLastExplanation(contentId, unitId)
	if !found {
		return nil, ErrMemoryNotFound
	}
	return &dto.MemoryEntryResponse{
		ContentId:        entry.ContentId,
		UnitId:           entry.UnitId,
		Script:           entry.Script,
		KeyPoints:        entry.KeyPoints,
		Examples:         entry.Examples,
		StudentLevel:     entry.StudentLevel,
		InteractionCount: entry.InteractionCount,
		Timestamp:        entry.Timestamp,
	}, nil
}

func (s *tutoringService) GetPreviousContext(ctx context.Context, requesterId uuid.UUID, sessionId string) ([]*dto.MemoryEntryResponse, error) {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return nil, err
	}

	entries := s.manager.GetPreviousContext(sessionId)
	result := make([]*dto.MemoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, &dto.MemoryEntryResponse{
			ContentId:        entry.ContentId,
			UnitId:           entry.UnitId,
			Script:           entry.Script,
			KeyPoints:        entry.KeyPoints,
			Examples:         entry.Examples,
			StudentLevel:     entry.StudentLevel,
			InteractionCount: entry.InteractionCount,
			Timestamp:        entry.Timestamp,
		})
	}
	return result, nil
}

func (s *tutoringService) RecordInteraction(ctx context.Context, requesterId uuid.UUID, sessionId string, req *dto.RecordInteractionRequest) error {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return err
	}
	s.manager.RecordInteraction(sessionId, req.UnitId, req.Kind)
	return nil
}

func (s *tutoringService) NeedsHelp(ctx context.Context, requesterId uuid.UUID, sessionId string, unitId uuid.UUID) (*dto.NeedsHelpResponse, error) {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return nil, err
	}
	return &dto.NeedsHelpResponse{NeedsHelp: s.manager.NeedsHelp(sessionId, unitId)}, nil
}

func (s *tutoringService) BuildContinuityPhrase(ctx context.Context, requesterId uuid.UUID, sessionId string) (*dto.ContinuityResponse, error) {
	if err := s.verifySession(requesterId, sessionId); err != nil {
		return nil, err
	}
	return &dto.ContinuityResponse{Phrase: s.manager.BuildContinuityPhrase(sessionId)}, nil
}

func (s *tutoringService) CleanupOldMemory(ctx context.Context, req *dto.CleanupRequest) (*dto.CleanupResponse, error) {
	removed := s.manager.CleanupOldMemory(req.MaxAgeMinutes)
	return &dto.CleanupResponse{Removed: removed}, nil
}
