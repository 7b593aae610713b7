package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/listafacil/apiserver/internal/store"
	"github.com/listafacil/apiserver/types"
	"github.com/rs/zerolog"
)

const searchLimit = 10

// NotifyChannel is the mq channel registration events are published on.
const NotifyChannel = "registrant.events"

var (
	// ErrEventNotActive is returned when a submission targets a missing,
	// cancelled, or finished event.
	ErrEventNotActive = errors.New("event not found or not active")

	// ErrDuplicateName is returned when a single add collides with an
	// existing registrant name for the event.
	ErrDuplicateName = errors.New("name already registered for this event")
)

// CapacityError is returned when a submission would push an event past its
// configured capacity.
type CapacityError struct {
	Limit int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("event capacity exceeded: maximum %d participants", e.Limit)
}

// RegistrantRepository defines persistence operations for name-list entries.
type RegistrantRepository interface {
	GetByID(ctx context.Context, id int) (types.Registrant, error)
	ListByEvent(ctx context.Context, eventID int, status types.CheckinStatus, search string) ([]types.Registrant, error)
	Search(ctx context.Context, eventID int, name string, limit int) ([]types.Registrant, error)
	CountByEvent(ctx context.Context, eventID int) (int, error)
	ExistsByName(ctx context.Context, eventID int, name string) (bool, error)
	Create(ctx context.Context, reg types.Registrant) (types.Registrant, error)
	UpdateCheckin(ctx context.Context, id int, status types.CheckinStatus, notes *string, checkedBy int) (types.Registrant, error)
}

// Publisher sends notification messages to a broker channel.
// Satisfied by *mq.MQ; nil disables notifications.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// RegistrantService encapsulates name-list use-cases, including the public
// bulk submission flow.
type RegistrantService struct {
	repo      RegistrantRepository
	eventRepo EventRepository
	notifier  Publisher
	log       zerolog.Logger
}

func NewRegistrantService(repo RegistrantRepository, eventRepo EventRepository, notifier Publisher, log zerolog.Logger) *RegistrantService {
	return &RegistrantService{
		repo:      repo,
		eventRepo: eventRepo,
		notifier:  notifier,
		log:       log,
	}
}

// SubmitResult is the outcome of one bulk submission: the rows that were
// inserted, a human-readable error per rejected position, and the event.
type SubmitResult struct {
	Inserted []types.Registrant `json:"inserted"`
	Errors   []string           `json:"errors"`
	Event    types.Event        `json:"event"`
}

// Summary renders the result's human-readable message.
func (r SubmitResult) Summary() string {
	msg := fmt.Sprintf("Processing complete. %d names added.", len(r.Inserted))
	if len(r.Errors) > 0 {
		msg += fmt.Sprintf(" %d errors found.", len(r.Errors))
	}
	return msg
}

// SubmitNames registers a batch of names against an active event. Emails and
// phones are matched to names by position and may be shorter than names.
//
// The event must exist and be active, and when a capacity is set the whole
// batch is rejected up front if existing registrations plus the batch size
// would exceed it. After that, each name is processed independently and in
// order: empty names and case-insensitive duplicates are reported in Errors,
// everything else is inserted. A failed insert never rolls back earlier rows.
//
// The capacity check and the inserts are separate round-trips, so two
// concurrent batches can both pass the check and jointly overshoot capacity.
// The duplicate check has the same window, but the unique index on
// (event_id, lower(name)) turns the losing insert into a per-item error.
func (s *RegistrantService) SubmitNames(ctx context.Context, eventID int, names, emails, phones []string) (SubmitResult, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SubmitResult{}, ErrEventNotActive
		}
		return SubmitResult{}, err
	}
	if event.Status != types.EventActive {
		return SubmitResult{}, ErrEventNotActive
	}

	if event.Capacity > 0 {
		count, err := s.repo.CountByEvent(ctx, eventID)
		if err != nil {
			return SubmitResult{}, err
		}
		if count+len(names) > event.Capacity {
			return SubmitResult{}, CapacityError{Limit: event.Capacity}
		}
	}

	result := SubmitResult{
		Inserted: make([]types.Registrant, 0, len(names)),
		Errors:   make([]string, 0),
		Event:    event,
	}

	for i, rawName := range names {
		name := strings.TrimSpace(rawName)
		if name == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("name %d: empty name", i+1))
			continue
		}

		exists, err := s.repo.ExistsByName(ctx, eventID, name)
		if err != nil {
			s.log.Error().Err(err).Str("name", name).Msg("duplicate lookup failed")
			result.Errors = append(result.Errors, fmt.Sprintf("name %d (%s): internal error", i+1, name))
			continue
		}
		if exists {
			result.Errors = append(result.Errors, fmt.Sprintf("name %d (%s): already registered", i+1, name))
			continue
		}

		reg := types.Registrant{
			EventID: eventID,
			Name:    name,
			Email:   positional(emails, i),
			Phone:   positional(phones, i),
		}
		created, err := s.repo.Create(ctx, reg)
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				result.Errors = append(result.Errors, fmt.Sprintf("name %d (%s): already registered", i+1, name))
				continue
			}
			s.log.Error().Err(err).Str("name", name).Msg("registrant insert failed")
			result.Errors = append(result.Errors, fmt.Sprintf("name %d (%s): internal error", i+1, name))
			continue
		}

		result.Inserted = append(result.Inserted, created)
		s.notify(ctx, "registrant.created", created)
	}

	return result, nil
}

// AddSingle registers one name on behalf of front-desk staff. Unlike the
// bulk flow the event only has to exist, and capacity is checked against the
// current count alone.
func (s *RegistrantService) AddSingle(ctx context.Context, eventID int, name, email, phone string) (types.Registrant, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return types.Registrant{}, err
	}

	name = strings.TrimSpace(name)
	exists, err := s.repo.ExistsByName(ctx, eventID, name)
	if err != nil {
		return types.Registrant{}, err
	}
	if exists {
		return types.Registrant{}, ErrDuplicateName
	}

	if event.Capacity > 0 {
		count, err := s.repo.CountByEvent(ctx, eventID)
		if err != nil {
			return types.Registrant{}, err
		}
		if count >= event.Capacity {
			return types.Registrant{}, CapacityError{Limit: event.Capacity}
		}
	}

	created, err := s.repo.Create(ctx, types.Registrant{
		EventID: eventID,
		Name:    name,
		Email:   strings.TrimSpace(email),
		Phone:   strings.TrimSpace(phone),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Registrant{}, ErrDuplicateName
		}
		return types.Registrant{}, err
	}

	s.notify(ctx, "registrant.created", created)
	return created, nil
}

func (s *RegistrantService) Get(ctx context.Context, id int) (types.Registrant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RegistrantService) ListByEvent(ctx context.Context, eventID int, status types.CheckinStatus, search string) ([]types.Registrant, error) {
	return s.repo.ListByEvent(ctx, eventID, status, search)
}

func (s *RegistrantService) Search(ctx context.Context, eventID int, name string) ([]types.Registrant, error) {
	return s.repo.Search(ctx, eventID, name, searchLimit)
}

// Checkin updates a registrant's attendance state, recording the acting
// staff member when the status is not pending.
func (s *RegistrantService) Checkin(ctx context.Context, id int, status types.CheckinStatus, notes *string, staffID int) (types.Registrant, error) {
	updated, err := s.repo.UpdateCheckin(ctx, id, status, notes, staffID)
	if err != nil {
		return types.Registrant{}, err
	}
	s.notify(ctx, "registrant.checkin", updated)
	return updated, nil
}

func (s *RegistrantService) notify(ctx context.Context, kind string, reg types.Registrant) {
	if s.notifier == nil {
		return
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return
	}
	if _, err := s.notifier.Publish(ctx, NotifyChannel, payload, map[string]string{"kind": kind}); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Int("registrant_id", reg.ID).Msg("notification publish failed")
	}
}

func positional(values []string, i int) string {
	if i < len(values) {
		return strings.TrimSpace(values[i])
	}
	return ""
}
