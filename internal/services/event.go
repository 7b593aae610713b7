package services

import (
	"context"

	"github.com/listafacil/apiserver/types"
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context) ([]types.Event, error)
	ListActive(ctx context.Context) ([]types.Event, error)
	GetByID(ctx context.Context, id int) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Update(ctx context.Context, event types.Event) (types.Event, error)
	Delete(ctx context.Context, id int) error
	Stats(ctx context.Context, id int) (types.EventStats, error)
}

// EventService encapsulates event use-cases.
type EventService struct {
	repo EventRepository
}

func NewEventService(repo EventRepository) *EventService {
	return &EventService{repo: repo}
}

func (s *EventService) List(ctx context.Context) ([]types.Event, error) {
	return s.repo.List(ctx)
}

func (s *EventService) ListActive(ctx context.Context) ([]types.Event, error) {
	return s.repo.ListActive(ctx)
}

func (s *EventService) Get(ctx context.Context, id int) (types.Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *EventService) Create(ctx context.Context, event types.Event) (types.Event, error) {
	if event.Status == "" {
		event.Status = types.EventActive
	}
	return s.repo.Create(ctx, event)
}

func (s *EventService) Update(ctx context.Context, event types.Event) (types.Event, error) {
	return s.repo.Update(ctx, event)
}

func (s *EventService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *EventService) Stats(ctx context.Context, id int) (types.EventStats, error) {
	return s.repo.Stats(ctx, id)
}
