package service

import (
	"context"
	"errors"

	"ai-lessoncraft-be/internal/dto"
	"ai-lessoncraft-be/pkg/cache"
	"ai-lessoncraft-be/pkg/queue"
	"ai-lessoncraft-be/pkg/store"

	"github.com/google/uuid"
)

// ErrResultNotFound is returned when neither the exact nor the latest cache
// key holds a result for the content item.
var ErrResultNotFound = errors.New("generation result not found")

type IGenerationService interface {
	SubmitJob(ctx context.Context, requesterId uuid.UUID, req *dto.SubmitJobRequest) (*dto.SubmitJobResponse, error)
	GetJobStatus(ctx context.Context, jobId string) (*dto.JobStatusResponse, error)
	GetJobResult(ctx context.Context, requesterId, contentId uuid.UUID) (*dto.JobResultResponse, error)
}

type generationService struct {
	queue       queue.Queue
	resultCache *cache.ResultCache
}

func NewGenerationService(q queue.Queue, resultCache *cache.ResultCache) IGenerationService {
	return &generationService{
		queue:       q,
		resultCache: resultCache,
	}
}

func (s *generationService) SubmitJob(ctx context.Context, requesterId uuid.UUID, req *dto.SubmitJobRequest) (*dto.SubmitJobResponse, error) {
	units := make([]store.GenerationUnit, 0, len(req.Units))
	for _, u := range req.Units {
		units = append(units, store.GenerationUnit{
			Id:    u.Id,
			Index: u.Index,
			Title: u.Title,
			Body:  u.Body,
			Notes: u.Notes,
		})
	}

	payload := store.JobPayload{
		ContentId:   req.ContentId,
		RequesterId: requesterId,
		Units:       units,
		Flags: store.JobFlags{
			Narrate: req.Narrate,
			Teach:   req.Teach,
		},
		Theme:        req.Theme,
		LearnerGrade: req.LearnerGrade,
		LearnerName:  req.LearnerName,
	}

	jobId, err := s.queue.Submit(ctx, payload)
	if err != nil {
		return nil, err
	}

	return &dto.SubmitJobResponse{JobId: jobId}, nil
}

func (s *generationService) GetJobStatus(ctx context.Context, jobId string) (*dto.JobStatusResponse, error) {
	status, err := s.queue.Status(ctx, jobId)
	if err != nil {
		return nil, err
	}

	return &dto.JobStatusResponse{
		JobId:       status.JobId,
		State:       status.State,
		Percent:     status.Progress.Percent,
		CurrentUnit: status.Progress.CurrentUnit,
		TotalUnits:  status.Progress.TotalUnits,
		FailReason:  status.FailReason,
	}, nil
}

// GetJobResult serves from the result cache: the requester's own entry first,
// then the shared latest entry for the content item.
func (s *generationService) GetJobResult(ctx context.Context, requesterId, contentId uuid.UUID) (*dto.JobResultResponse, error) {
	result, found := s.resultCache.Get(contentId, requesterId)
	if !found {
		return nil, ErrResultNotFound
	}

	units := make([]dto.JobResultUnit, 0, len(result.Units))
	for _, u := range result.Units {
		units = append(units, dto.JobResultUnit{
			UnitId:         u.UnitId,
			Index:          u.Index,
			Html:           u.Html,
			AudioRef:       u.AudioRef,
			TeachingScript: u.TeachingScript,
			KeyPoints:      u.KeyPoints,
			Degraded:       u.Degraded,
			DegradedReason: u.DegradedReason,
		})
	}

	return &dto.JobResultResponse{
		ContentId:   result.ContentId,
		Theme:       result.Theme,
		GeneratedAt: result.GeneratedAt,
		Units:       units,
	}, nil
}
