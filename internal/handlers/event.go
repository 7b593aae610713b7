package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/listafacil/apiserver/internal/services"
	"github.com/listafacil/apiserver/internal/store"
	"github.com/listafacil/apiserver/pkg/validator"
	"github.com/listafacil/apiserver/types"
)

const dateLayout = "2006-01-02"

// EventHandler provides HTTP handlers for events.
type EventHandler struct {
	eventService  *services.EventService
	reportService *services.ReportService
}

// NewEventHandler constructs a handler with the provided services.
func NewEventHandler(eventService *services.EventService, reportService *services.ReportService) *EventHandler {
	return &EventHandler{
		eventService:  eventService,
		reportService: reportService,
	}
}

// EventRouter registers event routes on the given router.
func EventRouter(
	r chi.Router,
	eventService *services.EventService,
	reportService *services.ReportService,
	auth func(http.Handler) http.Handler,
) {
	handler := NewEventHandler(eventService, reportService)

	r.Get("/active", handler.ListActive)
	r.With(auth, RequireStaff).Get("/", handler.List)
	r.With(auth, RequireStaff).Post("/", handler.Create)
	r.Route("/{eventID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.With(auth, RequireStaff).Put("/", handler.Update)
		r.With(auth, RequireAdmin).Delete("/", handler.Delete)
		r.With(auth, RequireStaff).Get("/stats", handler.Stats)
		r.With(auth, RequireStaff).Post("/report", handler.ArchiveReport)
	})
}

// List returns every event, for the dashboard.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeData(w, http.StatusOK, events, "events listed")
}

// ListActive returns active, future-dated events for the public page.
func (h *EventHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeData(w, http.StatusOK, events, "active events listed")
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.eventService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}
	writeData(w, http.StatusOK, event, "event found")
}

type CreateEventRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	EventDate   string `json:"event_date" validate:"required"`
	EventTime   string `json:"event_time"`
	Capacity    int    `json:"capacity" validate:"gte=0"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req CreateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validator.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eventDate, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "event_date must be YYYY-MM-DD")
		return
	}

	event, err := h.eventService.Create(r.Context(), types.Event{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EventDate:   eventDate,
		EventTime:   req.EventTime,
		Capacity:    req.Capacity,
		Status:      types.EventActive,
		CreatedBy:   user.ID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeData(w, http.StatusCreated, event, "event created")
}

type UpdateEventRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	EventDate   *string `json:"event_date"`
	EventTime   *string `json:"event_time"`
	Capacity    *int    `json:"capacity"`
	Status      *string `json:"status"`
}

// Update applies a partial event update. Non-admins may only edit events
// they created.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	var req UpdateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.eventService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch event")
		return
	}

	if user.Role != types.RoleAdmin && event.CreatedBy != user.ID {
		writeError(w, http.StatusForbidden, "no permission to edit this event")
		return
	}

	if req.Name != nil {
		event.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.EventDate != nil {
		eventDate, err := time.Parse(dateLayout, *req.EventDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "event_date must be YYYY-MM-DD")
			return
		}
		event.EventDate = eventDate
	}
	if req.EventTime != nil {
		event.EventTime = *req.EventTime
	}
	if req.Capacity != nil {
		if *req.Capacity < 0 {
			writeError(w, http.StatusBadRequest, "capacity must not be negative")
			return
		}
		event.Capacity = *req.Capacity
	}
	if req.Status != nil {
		status := types.EventStatus(*req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "status must be active, cancelled, or finished")
			return
		}
		event.Status = status
	}

	updated, err := h.eventService.Update(r.Context(), event)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	writeData(w, http.StatusOK, updated, "event updated")
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := h.eventService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	writeData(w, http.StatusOK, nil, "event deleted")
}

func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	stats, err := h.eventService.Stats(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch stats")
		return
	}
	writeData(w, http.StatusOK, stats, "event stats")
}

// ArchiveReport builds the attendance CSV and stores it in the configured
// object-storage bucket.
func (h *EventHandler) ArchiveReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	location, err := h.reportService.Archive(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, services.ErrStorageDisabled):
			writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		default:
			writeError(w, http.StatusInternalServerError, "failed to archive report")
		}
		return
	}
	writeData(w, http.StatusCreated, location, "report archived")
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
