package job

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Start records a new pending job and returns it. The ID is generated here
// so it can be embedded into the queued task before the row is visible.
func (s *Service) Start(ctx context.Context, kind string) (*Job, error) {
	j := &Job{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: StatusPending,
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) Finish(ctx context.Context, id string) error {
	return s.repo.UpdateStatus(ctx, id, StatusFinished, "")
}

func (s *Service) Fail(ctx context.Context, id, errMsg string) error {
	return s.repo.UpdateStatus(ctx, id, StatusError, errMsg)
}

func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.Get(ctx, id)
}
